package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/model"
)

var (
	errGone     = errors.New("connection refused")
	errRejected = errors.New("invalid params")
)

type stubBackend struct {
	err      error
	calls    int
	removed  int
	pingText string
}

func (s *stubBackend) Register(context.Context, model.Schedule) error { s.calls++; return s.err }
func (s *stubBackend) Remove(context.Context, string) error           { s.calls++; return s.err }
func (s *stubBackend) RemoveAll(context.Context) (int, error) {
	s.calls++
	return s.removed, s.err
}
func (s *stubBackend) Check(context.Context) (message.CheckResult, error) {
	s.calls++
	return message.CheckResult{}, s.err
}
func (s *stubBackend) ShowNow(context.Context, message.MedicineRef) (bool, error) {
	s.calls++
	return s.err == nil, s.err
}
func (s *stubBackend) Ping(context.Context) (message.DebugResponse, error) {
	s.calls++
	return message.DebugResponse{Message: s.pingText}, s.err
}

func unreachable(err error) bool { return errors.Is(err, errGone) }

func TestFailoverUsesSecondaryWhenPrimaryUnreachable(t *testing.T) {
	primary := &stubBackend{err: errGone}
	secondary := &stubBackend{removed: 2, pingText: "local"}
	f := Failover{Primary: primary, Secondary: secondary, Unreachable: unreachable}

	n, err := f.RemoveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := f.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", res.Message)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 2, secondary.calls)
}

func TestFailoverPassesThroughHandledErrors(t *testing.T) {
	primary := &stubBackend{err: errRejected}
	secondary := &stubBackend{}
	f := Failover{Primary: primary, Secondary: secondary, Unreachable: unreachable}

	err := f.Remove(context.Background(), "m1")
	require.ErrorIs(t, err, errRejected)
	assert.Zero(t, secondary.calls)
}

func TestFailoverWithoutPrimary(t *testing.T) {
	secondary := &stubBackend{}
	f := Failover{Secondary: secondary}

	ok, err := f.ShowNow(context.Background(), message.MedicineRef{ID: "m1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, secondary.calls)
}
