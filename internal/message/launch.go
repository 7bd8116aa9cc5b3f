package message

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	launchScheme = "medremind"
	launchHost   = "surface"

	ActionTaken = "taken"
)

// LaunchIntent is what a freshly opened surface should replay.
type LaunchIntent struct {
	Sound      bool
	Action     string
	MedicineID string
	Time       time.Time
}

func (i LaunchIntent) Empty() bool {
	return !i.Sound && i.Action == ""
}

// RelaunchURL asks a new surface to play the reminder sound for id.
func RelaunchURL(id string, at time.Time) string {
	q := url.Values{}
	q.Set("notification", "sound")
	q.Set("id", id)
	q.Set("time", strconv.FormatInt(at.UnixMilli(), 10))
	return launchScheme + "://" + launchHost + "?" + q.Encode()
}

// TakenURL asks a new surface to mark id (or its tag) as taken.
func TakenURL(idOrTag string) string {
	q := url.Values{}
	q.Set("action", ActionTaken)
	q.Set("id", idOrTag)
	return launchScheme + "://" + launchHost + "?" + q.Encode()
}

// ParseLaunchURL accepts a full launch URL or a bare query string.
func ParseLaunchURL(raw string) (LaunchIntent, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LaunchIntent{}, nil
	}
	var query url.Values
	if strings.HasPrefix(raw, "?") || !strings.Contains(raw, "://") {
		q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			return LaunchIntent{}, fmt.Errorf("%w: launch query: %v", ErrMalformed, err)
		}
		query = q
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return LaunchIntent{}, fmt.Errorf("%w: launch url: %v", ErrMalformed, err)
		}
		query = u.Query()
	}

	intent := LaunchIntent{
		Sound:      query.Get("notification") == "sound",
		Action:     query.Get("action"),
		MedicineID: query.Get("id"),
	}
	if ms := query.Get("time"); ms != "" {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return LaunchIntent{}, fmt.Errorf("%w: launch time %q", ErrMalformed, ms)
		}
		intent.Time = time.UnixMilli(v)
	}
	if intent.Action != "" && intent.Action != ActionTaken {
		return LaunchIntent{}, fmt.Errorf("%w: unknown launch action %q", ErrMalformed, intent.Action)
	}
	if intent.Action == ActionTaken && intent.MedicineID == "" {
		return LaunchIntent{}, fmt.Errorf("%w: taken action without id", ErrMalformed)
	}
	return intent, nil
}
