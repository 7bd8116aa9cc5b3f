package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/delivery"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeDeliverer struct {
	mu        sync.Mutex
	ok        bool
	delivered []string
	ensured   []string
}

func (f *fakeDeliverer) Deliver(_ context.Context, s model.Schedule) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, s.ID)
	return f.ok
}

func (f *fakeDeliverer) EnsureSurface(_ context.Context, s model.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, s.ID)
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func march10(h, m, s int) time.Time {
	return time.Date(2026, 3, 10, h, m, s, 0, time.UTC)
}

type harness struct {
	clock *fakeClock
	store *storage.ScheduleStore
	guard *debounce.Guard
	loop  *Loop
}

func newHarness(t *testing.T, d Deliverer, now time.Time, schedules ...model.Schedule) *harness {
	t.Helper()
	h := &harness{clock: &fakeClock{now: now}}
	h.store = storage.NewScheduleStore(storage.NewMemoryRepository(), quiet())
	for _, s := range schedules {
		require.NoError(t, h.store.Upsert(context.Background(), s))
	}
	h.guard = debounce.NewGuard(h.clock)
	h.loop = NewLoop(h.store, h.guard, d, Options{Clock: h.clock, Logger: quiet()})
	return h
}

func (h *harness) stored(t *testing.T, id string) (model.Schedule, bool) {
	t.Helper()
	for _, s := range h.store.Load(context.Background()) {
		if s.ID == id {
			return s, true
		}
	}
	return model.Schedule{}, false
}

func TestDailyScheduleIsRearmedForTomorrow(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	h := newHarness(t, d, march10(8, 0, 30),
		model.Schedule{ID: "m1", Name: "Aspirin", Time: "08:00", Daily: true, NextNotification: march10(8, 0, 0)})

	res := h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"m1"}, res.Delivered)
	assert.Equal(t, []string{"m1"}, res.Rearmed)
	assert.True(t, res.NotificationShown())

	s, ok := h.stored(t, "m1")
	require.True(t, ok)
	assert.Equal(t, "2026-03-11 08:00", s.NextNotification.UTC().Format("2006-01-02 15:04"))
	assert.True(t, s.NextNotification.After(h.clock.Now()))
	assert.Equal(t, []string{"m1"}, d.ensured)
}

func TestOneShotScheduleIsRetired(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	h := newHarness(t, d, march10(8, 0, 30),
		model.Schedule{ID: "once", Time: "08:00", NextNotification: march10(8, 0, 0)})

	res := h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"once"}, res.Retired)
	_, ok := h.stored(t, "once")
	assert.False(t, ok)
}

func TestSecondPassAtSameInstantDeliversNothing(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	h := newHarness(t, d, march10(8, 0, 30),
		model.Schedule{ID: "m1", Time: "08:00", Daily: true, NextNotification: march10(8, 0, 0)},
		model.Schedule{ID: "once", Time: "08:00", NextNotification: march10(8, 0, 0)})

	h.loop.Evaluate(context.Background())
	second := h.loop.Evaluate(context.Background())

	assert.Equal(t, 2, d.count())
	assert.True(t, second.Skipped)
	assert.Empty(t, second.Delivered)
}

func TestFailedDeliveryStaysDueAndRetriesAfterFloor(t *testing.T) {
	d := &fakeDeliverer{ok: false}
	h := newHarness(t, d, march10(8, 0, 30),
		model.Schedule{ID: "m1", Time: "08:00", Daily: true, NextNotification: march10(8, 0, 0)})

	res := h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"m1"}, res.Failed)
	s, _ := h.stored(t, "m1")
	assert.True(t, s.NextNotification.Equal(march10(8, 0, 0)))
	assert.Empty(t, d.ensured)

	h.clock.Set(march10(8, 0, 40))
	res = h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"m1"}, res.Deferred)

	d.ok = true
	h.clock.Set(march10(8, 1, 31))
	res = h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"m1"}, res.Delivered)
	assert.Equal(t, 2, d.count())
}

func TestInvalidTimeIsNeverDue(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	h := newHarness(t, d, march10(8, 0, 30),
		model.Schedule{ID: "bad", Time: "25:99", Daily: true, NextNotification: march10(7, 0, 0)},
		model.Schedule{ID: "good", Time: "08:00", Daily: true, NextNotification: march10(8, 0, 0)})

	res := h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"bad"}, res.Invalid)
	assert.Equal(t, []string{"good"}, res.Delivered)
	s, ok := h.stored(t, "bad")
	require.True(t, ok)
	assert.True(t, s.NextNotification.Equal(march10(7, 0, 0)))
}

func TestDueSchedulesAreDeliveredInInsertionOrder(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	h := newHarness(t, d, march10(12, 0, 0),
		model.Schedule{ID: "c", Time: "11:00", Daily: true, NextNotification: march10(11, 0, 0)},
		model.Schedule{ID: "a", Time: "09:00", Daily: true, NextNotification: march10(9, 0, 0)},
		model.Schedule{ID: "later", Time: "18:00", Daily: true, NextNotification: march10(18, 0, 0)},
		model.Schedule{ID: "b", Time: "10:00", Daily: true, NextNotification: march10(10, 0, 0)})

	res := h.loop.Evaluate(context.Background())
	assert.Equal(t, []string{"c", "a", "b"}, d.delivered)
	assert.Equal(t, []string{"b"}, d.ensured)
	assert.True(t, res.NextDue.Equal(march10(18, 0, 0)))
}

func TestEmptyStoreIsIdle(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	h := newHarness(t, d, march10(8, 0, 0))
	res := h.loop.Evaluate(context.Background())
	assert.Zero(t, res.Schedules)
	assert.False(t, res.Skipped)
	assert.Zero(t, d.count())
}

type recordingSurface struct {
	mu   sync.Mutex
	sent []message.PlaySound
}

func (r *recordingSurface) ActiveSurfaces() int { return 1 }
func (r *recordingSurface) SendPlaySound(_ context.Context, msg message.PlaySound) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return 1, nil
}

type deniedNotifier struct{}

func (deniedNotifier) Permission() delivery.Permission { return delivery.PermissionDenied }
func (deniedNotifier) Show(context.Context, delivery.Notification) error {
	return nil
}

func TestDailyDoseWithSurfaceAndNoPermission(t *testing.T) {
	clock := &fakeClock{now: march10(8, 0, 30)}
	guard := debounce.NewGuard(clock)
	surface := &recordingSurface{}
	coord := delivery.NewCoordinator(delivery.Options{
		Notifier: deniedNotifier{},
		Surfaces: surface,
		Guard:    guard,
		Clock:    clock,
		Logger:   quiet(),
	})
	store := storage.NewScheduleStore(storage.NewMemoryRepository(), quiet())
	require.NoError(t, store.Upsert(context.Background(),
		model.Schedule{ID: "m1", Name: "Aspirin", Time: "08:00", Daily: true, NextNotification: march10(8, 0, 0)}))
	loop := NewLoop(store, guard, coord, Options{Clock: clock, Logger: quiet()})

	loop.Evaluate(context.Background())
	require.Len(t, surface.sent, 1)
	assert.Equal(t, "m1", surface.sent[0].MedicineID)

	got := store.Load(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-11 08:00", got[0].NextNotification.UTC().Format("2006-01-02 15:04"))

	clock.Set(march10(8, 0, 31))
	loop.Evaluate(context.Background())
	assert.Len(t, surface.sent, 1)
}

func TestLoopStartCheckNowStop(t *testing.T) {
	d := &fakeDeliverer{ok: true}
	store := storage.NewScheduleStore(storage.NewMemoryRepository(), quiet())
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Upsert(context.Background(),
		model.Schedule{ID: "m1", Time: past.Format("15:04"), NextNotification: past}))

	loop := NewLoop(store, nil, d, Options{Interval: time.Hour, Logger: quiet(), Results: 4})
	loop.Start(context.Background())

	first := waitResult(t, loop.Results(), time.Second)
	assert.Equal(t, []string{"m1"}, first.Delivered)

	loop.CheckNow()
	second := waitResult(t, loop.Results(), time.Second)
	assert.Empty(t, second.Delivered)

	loop.Stop()
	loop.Stop()
	_, open := <-loop.Results()
	assert.False(t, open)
	assert.GreaterOrEqual(t, loop.Passes(), uint64(2))
}

func waitResult(t *testing.T, ch <-chan PassResult, timeout time.Duration) PassResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for pass result")
		return PassResult{}
	}
}

func TestTwoContextsOverSharedStoreDeliverOnce(t *testing.T) {
	clock := &fakeClock{now: march10(8, 0, 30)}
	store := storage.NewScheduleStore(storage.NewMemoryRepository(), quiet())
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, model.Schedule{ID: "m1", Time: "08:00", Daily: true, NextNotification: march10(8, 0, 0)}))
	require.NoError(t, store.Upsert(ctx, model.Schedule{ID: "once", Time: "08:00", NextNotification: march10(8, 0, 0)}))

	background := &fakeDeliverer{ok: true}
	foreground := &fakeDeliverer{ok: true}
	bgLoop := NewLoop(store, debounce.NewGuard(clock), background, Options{Context: "background", Clock: clock, Logger: quiet()})
	fgLoop := NewLoop(store, debounce.NewGuard(clock), foreground, Options{Context: "foreground", Clock: clock, Logger: quiet()})

	first := bgLoop.Evaluate(ctx)
	assert.Equal(t, []string{"m1", "once"}, first.Delivered)

	clock.Set(march10(8, 0, 31))
	second := fgLoop.Evaluate(ctx)
	assert.False(t, second.Skipped, "the foreground guard is its own")
	assert.Empty(t, second.Delivered)
	assert.Zero(t, foreground.count())
	assert.Equal(t, 1, second.Schedules)

	stored := store.Load(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, "m1", stored[0].ID)
	assert.True(t, stored[0].NextNotification.Equal(time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)))
}
