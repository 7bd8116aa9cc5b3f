package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandeepkv93/medremind/internal/model"
)

var (
	ErrUnknownType = errors.New("message: unknown type")
	ErrMalformed   = errors.New("message: malformed")
)

type Type string

const (
	TypeScheduleNotification Type = "SCHEDULE_NOTIFICATION"
	TypeRegisterSchedule     Type = "REGISTER_NOTIFICATION_SCHEDULE"
	TypeRemoveSchedule       Type = "REMOVE_NOTIFICATION_SCHEDULE"
	TypeRemoveAllSchedules   Type = "REMOVE_ALL_NOTIFICATION_SCHEDULES"
	TypeCheckSchedules       Type = "CHECK_NOTIFICATION_SCHEDULES"
	TypeCheckResult          Type = "NOTIFICATION_CHECK_RESULT"
	TypePlaySound            Type = "PLAY_NOTIFICATION_SOUND"
	TypeDebugTest            Type = "DEBUG_TEST"
	TypeDebugResponse        Type = "DEBUG_RESPONSE"
)

// Message is one variant of the cross-context message union.
type Message interface {
	Type() Type
}

type MedicineRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
}

// ScheduleSpec is the wire form of a schedule. NextNotification is epoch
// milliseconds.
type ScheduleSpec struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Time             string `json:"time"`
	NextNotification int64  `json:"nextNotification"`
	Daily            bool   `json:"daily"`
}

func SpecFromSchedule(s model.Schedule) ScheduleSpec {
	return ScheduleSpec{
		ID:               s.ID,
		Name:             s.Name,
		Time:             s.Time,
		NextNotification: s.NextNotification.UnixMilli(),
		Daily:            s.Daily,
	}
}

func (s ScheduleSpec) Schedule() model.Schedule {
	return model.Schedule{
		ID:               s.ID,
		Name:             s.Name,
		Time:             s.Time,
		Daily:            s.Daily,
		NextNotification: time.UnixMilli(s.NextNotification),
	}
}

type ScheduleNotification struct {
	Medicine MedicineRef `json:"medicine"`
}

type RegisterSchedule struct {
	Medicine ScheduleSpec `json:"medicine"`
}

type RemoveSchedule struct {
	MedicineID string `json:"medicineId"`
}

type RemoveAllSchedules struct{}

type CheckSchedules struct {
	Time int64 `json:"time"`
}

type CheckResult struct {
	Time              int64 `json:"time"`
	NotificationShown bool  `json:"notificationShown"`
	Schedules         int   `json:"schedules"`
	Skipped           bool  `json:"skipped,omitempty"`
}

type PlaySound struct {
	MedicineID string `json:"medicineId,omitempty"`
	Time       int64  `json:"time"`
}

type DebugTest struct {
	Time int64 `json:"time"`
}

type DebugResponse struct {
	Message   string `json:"message"`
	Time      int64  `json:"time"`
	Schedules int    `json:"schedules"`
	Version   string `json:"version,omitempty"`
}

// Ack is the reply to a message that carries no result.
type Ack struct {
	OK      bool `json:"ok"`
	Removed int  `json:"removed,omitempty"`
}

func (ScheduleNotification) Type() Type { return TypeScheduleNotification }
func (RegisterSchedule) Type() Type     { return TypeRegisterSchedule }
func (RemoveSchedule) Type() Type       { return TypeRemoveSchedule }
func (RemoveAllSchedules) Type() Type   { return TypeRemoveAllSchedules }
func (CheckSchedules) Type() Type       { return TypeCheckSchedules }
func (CheckResult) Type() Type          { return TypeCheckResult }
func (PlaySound) Type() Type            { return TypePlaySound }
func (DebugTest) Type() Type            { return TypeDebugTest }
func (DebugResponse) Type() Type        { return TypeDebugResponse }

// Validate checks the fields each variant cannot do without.
func Validate(m Message) error {
	switch v := m.(type) {
	case ScheduleNotification:
		if v.Medicine.ID == "" {
			return fmt.Errorf("%w: %s requires medicine.id", ErrMalformed, v.Type())
		}
	case RegisterSchedule:
		if v.Medicine.ID == "" || v.Medicine.Time == "" {
			return fmt.Errorf("%w: %s requires medicine.id and medicine.time", ErrMalformed, v.Type())
		}
	case RemoveSchedule:
		if v.MedicineID == "" {
			return fmt.Errorf("%w: %s requires medicineId", ErrMalformed, v.Type())
		}
	}
	return nil
}

// DecodeParams builds the variant named by t from its JSON payload.
func DecodeParams(t Type, params []byte) (Message, error) {
	var (
		out Message
		err error
	)
	switch t {
	case TypeScheduleNotification:
		out, err = decodeInto[ScheduleNotification](params)
	case TypeRegisterSchedule:
		out, err = decodeInto[RegisterSchedule](params)
	case TypeRemoveSchedule:
		out, err = decodeInto[RemoveSchedule](params)
	case TypeRemoveAllSchedules:
		out, err = decodeInto[RemoveAllSchedules](params)
	case TypeCheckSchedules:
		out, err = decodeInto[CheckSchedules](params)
	case TypeCheckResult:
		out, err = decodeInto[CheckResult](params)
	case TypePlaySound:
		out, err = decodeInto[PlaySound](params)
	case TypeDebugTest:
		out, err = decodeInto[DebugTest](params)
	case TypeDebugResponse:
		out, err = decodeInto[DebugResponse](params)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode reads the flat {"type": ..., ...fields} envelope.
func Decode(raw []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return DecodeParams(head.Type, raw)
}

// Encode writes m as a flat envelope with its type alongside its fields.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, err := json.Marshal(m.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	return json.Marshal(fields)
}

func decodeInto[T Message](params []byte) (T, error) {
	var out T
	if len(params) == 0 || string(params) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(params, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}
