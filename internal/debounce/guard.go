package debounce

import (
	"strconv"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

// Global keys. Per-medicine keys are built with MedicineKey, DisplayKey,
// MessageKey, AlertKey and SoundKey.
const (
	KeySound        = "sound"
	KeyNotification = "notification-display"
	KeyMessage      = "message"
	KeyLaunch       = "surface-launch"
)

type Windows struct {
	Sound             time.Duration `yaml:"sound"`
	Notification      time.Duration `yaml:"notification"`
	Message           time.Duration `yaml:"message"`
	MedicineFloor     time.Duration `yaml:"medicine_floor"`
	MedicineImmediate time.Duration `yaml:"medicine_immediate"`
	Launch            time.Duration `yaml:"launch"`
}

func DefaultWindows() Windows {
	return Windows{
		Sound:             3 * time.Second,
		Notification:      5 * time.Second,
		Message:           2 * time.Second,
		MedicineFloor:     60 * time.Second,
		MedicineImmediate: 3 * time.Second,
		Launch:            10 * time.Second,
	}
}

// Longest is the widest window; stamps older than it admit every key.
func (w Windows) Longest() time.Duration {
	out := w.Sound
	for _, d := range []time.Duration{w.Notification, w.Message, w.MedicineFloor, w.MedicineImmediate, w.Launch} {
		if d > out {
			out = d
		}
	}
	return out
}

// MedicineKey guards the once-per-floor delivery of a schedule.
func MedicineKey(id string) string { return "medicine|" + id }

// DisplayKey guards against an immediate duplicate notification for the
// same medicine. It is kept apart from MedicineKey so that stamping the
// floor does not suppress the display that follows it.
func DisplayKey(id string) string { return "display|" + id }

// MessageKey guards the play-sound message sent to live surfaces for one
// medicine.
func MessageKey(id string) string { return KeyMessage + "|" + id }

// AlertKey guards the in-page alert a surface raises for one medicine.
func AlertKey(id string) string { return "alert|" + id }

// SoundKey buckets sound requests by medicine and wall-clock second.
func SoundKey(id string, at time.Time) string {
	return "sound|" + id + "|" + strconv.FormatInt(at.Unix(), 10)
}

// Guard is a last-admitted ledger. Each execution context owns one.
type Guard struct {
	mu     sync.Mutex
	clock  Clock
	ledger map[string]time.Time
}

func NewGuard(clock Clock) *Guard {
	if clock == nil {
		clock = SystemClock
	}
	return &Guard{clock: clock, ledger: make(map[string]time.Time)}
}

// TryAdmit stamps key and returns true when at least window has passed
// since the last admission, otherwise it leaves the stamp untouched.
func (g *Guard) TryAdmit(key string, window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	if !g.readyLocked(key, window, now) {
		return false
	}
	g.ledger[key] = now
	return true
}

// Ready is TryAdmit without the stamp.
func (g *Guard) Ready(key string, window time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyLocked(key, window, g.clock.Now())
}

func (g *Guard) Stamp(key string) {
	g.mu.Lock()
	g.ledger[key] = g.clock.Now()
	g.mu.Unlock()
}

func (g *Guard) Forget(key string) {
	g.mu.Lock()
	delete(g.ledger, key)
	g.mu.Unlock()
}

// Prune drops stamps older than maxAge and returns how many were removed.
func (g *Guard) Prune(maxAge time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	removed := 0
	for key, at := range g.ledger {
		if now.Sub(at) > maxAge {
			delete(g.ledger, key)
			removed++
		}
	}
	return removed
}

func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ledger)
}

func (g *Guard) readyLocked(key string, window time.Duration, now time.Time) bool {
	last, ok := g.ledger[key]
	if !ok {
		return true
	}
	return now.Sub(last) >= window
}
