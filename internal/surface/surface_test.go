package surface

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/medremind/internal/config"
	"github.com/sandeepkv93/medremind/internal/daemon"
	"github.com/sandeepkv93/medremind/internal/debounce"
	"github.com/sandeepkv93/medremind/internal/delivery"
	"github.com/sandeepkv93/medremind/internal/medicines"
	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
	"github.com/sandeepkv93/medremind/internal/storage"
)

type countingPlayer struct {
	mu    sync.Mutex
	plays int
}

func (p *countingPlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *countingPlayer) Plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

type nopLauncher struct{}

func (nopLauncher) Launch(context.Context, string) error { return nil }

type countingLauncher struct {
	mu   sync.Mutex
	urls []string
}

func (l *countingLauncher) Launch(_ context.Context, url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = append(l.urls, url)
	return nil
}

func (l *countingLauncher) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.DesktopNotifications = false
	cfg.FollowUpDelay = 0
	return cfg
}

func newOffline(t *testing.T, now time.Time) (*Surface, *countingPlayer) {
	t.Helper()
	player := &countingPlayer{}
	s := New(context.Background(), testConfig(), quietLogger(), Options{
		Book:     medicines.NewBook(afero.NewMemMapFs(), "/data/medicines.json"),
		Store:    storage.NewScheduleStore(nil, quietLogger()),
		Notifier: delivery.NoopNotifier{},
		Player:   player,
		Clock:    debounce.ClockFunc(func() time.Time { return now }),
		Offline:  true,
	})
	t.Cleanup(func() { _ = s.Close() })
	return s, player
}

func TestAddArmsScheduleLocally(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)
	s, _ := newOffline(t, now)
	ctx := context.Background()
	assert.Equal(t, ModeLocal, s.Mode())

	med, err := s.Add(ctx, "Aspirin", "8:00", true)
	require.NoError(t, err)
	assert.Equal(t, "08:00", med.Time)

	scheds := s.Schedules(ctx)
	require.Len(t, scheds, 1)
	assert.Equal(t, med.ID, scheds[0].ID)
	assert.True(t, scheds[0].NextNotification.Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)))
}

func TestTakeOneShotRetiresSchedule(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)
	s, _ := newOffline(t, now)
	ctx := context.Background()

	med, err := s.Add(ctx, "Vitamin", "09:00", false)
	require.NoError(t, err)

	taken, err := s.Take(ctx, "medicine-reminder-"+med.ID)
	require.NoError(t, err)
	assert.True(t, taken.Taken)
	assert.Empty(t, s.Schedules(ctx))
}

func TestLocalCheckPlaysDueReminder(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 30, 0, time.Local)
	s, player := newOffline(t, now)
	ctx := context.Background()

	med, err := s.Add(ctx, "Aspirin", "08:00", true)
	require.NoError(t, err)
	// ScheduleFor arms the next occurrence, so pull it back to make it due.
	scheds := s.Schedules(ctx)
	require.Len(t, scheds, 1)
	scheds[0].NextNotification = now.Add(-30 * time.Second)
	require.NoError(t, s.store.Upsert(ctx, scheds[0]))

	res, err := s.Check(ctx)
	require.NoError(t, err)
	assert.True(t, res.NotificationShown)

	require.Eventually(t, func() bool { return player.Plays() == 1 }, 2*time.Second, 10*time.Millisecond)
	select {
	case alert := <-s.Bridge().Alerts():
		assert.Equal(t, med.ID, alert.Medicine.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an in-page alert")
	}
}

func TestRemoveDropsMedicineAndSchedule(t *testing.T) {
	s, _ := newOffline(t, time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local))
	ctx := context.Background()

	med, err := s.Add(ctx, "Iron", "20:00", true)
	require.NoError(t, err)
	require.NoError(t, s.Remove(ctx, med.ID))

	meds, err := s.Medicines()
	require.NoError(t, err)
	assert.Empty(t, meds)
	assert.Empty(t, s.Schedules(ctx))
	require.NoError(t, s.Remove(ctx, med.ID), "removing twice is harmless")
}

func TestSurfaceUsesDaemonWhenReachable(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)
	clock := debounce.ClockFunc(func() time.Time { return now })
	shared := storage.NewScheduleStore(nil, quietLogger())

	d := daemon.New(testConfig(), quietLogger(), daemon.Options{
		Store:    shared,
		Notifier: delivery.NoopNotifier{},
		Launcher: nopLauncher{},
		Clock:    clock,
		Version:  "test",
	})
	ts := httptest.NewServer(d.Handler())
	t.Cleanup(ts.Close)

	cfg := testConfig()
	cfg.DaemonURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/rpc"
	player := &countingPlayer{}
	s := New(context.Background(), cfg, quietLogger(), Options{
		Book:     medicines.NewBook(afero.NewMemMapFs(), "/data/medicines.json"),
		Store:    storage.NewScheduleStore(nil, quietLogger()),
		Notifier: delivery.NoopNotifier{},
		Player:   player,
		Clock:    clock,
		Version:  "test",
	})
	t.Cleanup(func() { _ = s.Close() })
	require.Equal(t, ModeDaemon, s.Mode())

	ctx := context.Background()
	med, err := s.Add(ctx, "Aspirin", "08:00", true)
	require.NoError(t, err)
	require.Len(t, shared.Load(ctx), 1, "schedule registered with the daemon")

	ping, err := s.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ping.Schedules)

	require.Eventually(t, func() bool { return d.Hub().ActiveSurfaces() == 1 }, 2*time.Second, 10*time.Millisecond)
	n, err := d.Hub().SendPlaySound(ctx, message.PlaySound{MedicineID: med.ID, Time: now.UnixMilli()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool { return player.Plays() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOneshotSurfaceIsNotCountedAsLive(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)
	clock := debounce.ClockFunc(func() time.Time { return now })
	shared := storage.NewScheduleStore(nil, quietLogger())
	launcher := &countingLauncher{}

	d := daemon.New(testConfig(), quietLogger(), daemon.Options{
		Store:    shared,
		Notifier: delivery.NoopNotifier{},
		Launcher: launcher,
		Clock:    clock,
		Version:  "test",
	})
	ts := httptest.NewServer(d.Handler())
	t.Cleanup(ts.Close)

	cfg := testConfig()
	cfg.DaemonURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/rpc"
	s := New(context.Background(), cfg, quietLogger(), Options{
		Book:     medicines.NewBook(afero.NewMemMapFs(), "/data/medicines.json"),
		Store:    storage.NewScheduleStore(nil, quietLogger()),
		Notifier: delivery.NoopNotifier{},
		Player:   &countingPlayer{},
		Clock:    clock,
		Version:  "test",
		Oneshot:  true,
	})
	t.Cleanup(func() { _ = s.Close() })
	require.Equal(t, ModeDaemon, s.Mode())

	ctx := context.Background()
	med, err := s.Add(ctx, "Aspirin", "07:00", true)
	require.NoError(t, err)
	require.Len(t, shared.Load(ctx), 1)
	assert.Zero(t, d.Hub().ActiveSurfaces())

	// Make the dose due: with no live surface the daemon must open one.
	scheds := shared.Load(ctx)
	scheds[0].NextNotification = now.Add(-time.Second)
	require.NoError(t, shared.Upsert(ctx, scheds[0]))
	res, err := s.Check(ctx)
	require.NoError(t, err)
	assert.True(t, res.NotificationShown)
	urls := launcher.URLs()
	require.Len(t, urls, 1)
	assert.Contains(t, urls[0], "id="+med.ID)
}

func TestOneshotFallsBackWhenDaemonIsDown(t *testing.T) {
	cfg := testConfig()
	cfg.DaemonURL = "ws://127.0.0.1:1/rpc"
	s := New(context.Background(), cfg, quietLogger(), Options{
		Book:     medicines.NewBook(afero.NewMemMapFs(), "/data/medicines.json"),
		Store:    storage.NewScheduleStore(nil, quietLogger()),
		Notifier: delivery.NoopNotifier{},
		Player:   &countingPlayer{},
		Oneshot:  true,
	})
	t.Cleanup(func() { _ = s.Close() })
	assert.Equal(t, ModeLocal, s.Mode())
}

func TestNotificationTakenActionMarksDose(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.Local)
	notifier := &delivery.DesktopNotifier{
		GOOS:     "linux",
		LookPath: func(bin string) (string, error) { return "/usr/bin/" + bin, nil },
		Run:      func(context.Context, string, ...string) error { return nil },
		Output:   func(context.Context, string, ...string) ([]byte, error) { return nil, nil },
	}
	s := New(context.Background(), testConfig(), quietLogger(), Options{
		Book:     medicines.NewBook(afero.NewMemMapFs(), "/data/medicines.json"),
		Store:    storage.NewScheduleStore(nil, quietLogger()),
		Notifier: notifier,
		Player:   &countingPlayer{},
		Clock:    debounce.ClockFunc(func() time.Time { return now }),
		Offline:  true,
	})
	t.Cleanup(func() { _ = s.Close() })
	require.NotNil(t, notifier.OnAction)

	ctx := context.Background()
	med, err := s.Add(ctx, "Vitamin", "09:00", false)
	require.NoError(t, err)

	notifier.OnAction(delivery.ActionLater, model.Tag(med.ID))
	meds, err := s.Medicines()
	require.NoError(t, err)
	assert.False(t, meds[0].Taken)

	notifier.OnAction(delivery.ActionTaken, model.Tag(med.ID))
	meds, err = s.Medicines()
	require.NoError(t, err)
	assert.True(t, meds[0].Taken)
	assert.Empty(t, s.Schedules(ctx))
}
