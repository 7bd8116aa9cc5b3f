package message

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/medremind/internal/model"
)

func TestDecodeFlatEnvelope(t *testing.T) {
	raw := []byte(`{"type":"REGISTER_NOTIFICATION_SCHEDULE","medicine":{"id":"m1","name":"Aspirin","time":"08:00","nextNotification":1773129600000,"daily":true}}`)
	msg, err := Decode(raw)
	require.NoError(t, err)

	reg, ok := msg.(RegisterSchedule)
	require.True(t, ok, "got %T", msg)
	s := reg.Medicine.Schedule()
	assert.Equal(t, "m1", s.ID)
	assert.True(t, s.Daily)
	assert.Equal(t, int64(1773129600000), s.NextNotification.UnixMilli())
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":"FORMAT_DISK"}`))
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = Decode([]byte(`{"medicineId":"m1"}`))
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Decode([]byte(`{"type":"REMOVE_NOTIFICATION_SCHEDULE"}`))
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Decode([]byte(`not json`))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, msg := range []Message{
		PlaySound{MedicineID: "m1", Time: 42},
		RemoveSchedule{MedicineID: "m1"},
		RemoveAllSchedules{},
		CheckResult{Time: 7, NotificationShown: true, Schedules: 2},
		DebugResponse{Message: "alive", Time: 9},
	} {
		raw, err := Encode(msg)
		require.NoError(t, err)
		back, err := Decode(raw)
		require.NoError(t, err, string(raw))
		assert.Equal(t, msg, back)
	}
}

func TestSpecFromScheduleUsesEpochMillis(t *testing.T) {
	next := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	spec := SpecFromSchedule(model.Schedule{ID: "m1", Time: "08:00", NextNotification: next})
	assert.Equal(t, next.UnixMilli(), spec.NextNotification)
	assert.True(t, spec.Schedule().NextNotification.Equal(next))
}

func TestRelaunchURLCarriesSoundAndID(t *testing.T) {
	at := time.UnixMilli(1773129600000)
	raw := RelaunchURL("m1", at)
	assert.Contains(t, raw, "notification=sound")
	assert.Contains(t, raw, "id=m1")

	intent, err := ParseLaunchURL(raw)
	require.NoError(t, err)
	assert.True(t, intent.Sound)
	assert.Equal(t, "m1", intent.MedicineID)
	assert.Equal(t, at.UnixMilli(), intent.Time.UnixMilli())
}

func TestParseLaunchURLTakenAction(t *testing.T) {
	intent, err := ParseLaunchURL(TakenURL("medicine-m1"))
	require.NoError(t, err)
	assert.Equal(t, ActionTaken, intent.Action)
	assert.Equal(t, "medicine-m1", intent.MedicineID)

	intent, err = ParseLaunchURL("?action=taken&id=m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", intent.MedicineID)

	_, err = ParseLaunchURL("?action=taken")
	assert.Error(t, err)
	_, err = ParseLaunchURL("?action=snooze&id=m1")
	assert.Error(t, err)

	empty, err := ParseLaunchURL("")
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}
