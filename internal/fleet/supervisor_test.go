// ABOUTME: Tests for the per-bot reconnection state machine.
// ABOUTME: Covers the retry bound, timer cancellation, and counter reset on reconnect.

package fleet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorConnectIdempotent(t *testing.T) {
	fc := newFakeClient()
	sup := NewSupervisor("bot-1", fc, 5, time.Millisecond, nil)
	defer sup.Disconnect()

	require.NoError(t, sup.Connect(context.Background()))
	require.NoError(t, sup.Connect(context.Background()))

	connects, _, _ := fc.calls()
	assert.Equal(t, 1, connects, "second connect while connecting must be a no-op")
	assert.Equal(t, StateConnecting, sup.State())
}

func TestSupervisorConnectFailureReturnsError(t *testing.T) {
	fc := newFakeClient()
	fc.setConnectErr(errors.New("connection refused"))
	sup := NewSupervisor("bot-1", fc, 5, time.Millisecond, nil)
	defer sup.Disconnect()

	err := sup.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, sup.State())
	assert.False(t, sup.IsAlive())
}

func TestSupervisorConnectedState(t *testing.T) {
	fc := newFakeClient()
	rec := &eventRecorder{}
	sup := NewSupervisor("bot-1", fc, 5, time.Millisecond, rec.handle)
	defer sup.Disconnect()

	require.NoError(t, sup.Connect(context.Background()))
	fc.emitConnected()

	require.True(t, rec.waitFor(KindConnected, time.Second))
	assert.True(t, sup.IsAlive())
	assert.Equal(t, StateConnected, sup.State())
}

func TestSupervisorRetryBound(t *testing.T) {
	fc := newFakeClient()
	rec := &eventRecorder{}
	sup := NewSupervisor("bot-1", fc, 5, time.Millisecond, rec.handle)
	defer sup.Disconnect()

	require.NoError(t, sup.Connect(context.Background()))
	fc.emitConnected()
	require.True(t, rec.waitFor(KindConnected, time.Second))

	// every reconnect attempt from here on fails
	fc.setConnectErr(errors.New("connection refused"))
	fc.emitDisconnected("connection reset by peer")

	require.True(t, rec.waitFor(KindExhausted, 2*time.Second))
	assert.Equal(t, StateExhausted, sup.State())
	assert.Equal(t, 1, rec.count(KindExhausted))

	connects, _, _ := fc.calls()
	assert.Equal(t, 6, connects, "one initial connect plus exactly five retries")

	// no further attempts are scheduled
	time.Sleep(20 * time.Millisecond)
	connects, _, _ = fc.calls()
	assert.Equal(t, 6, connects)
}

func TestSupervisorStopCancelsPendingRetry(t *testing.T) {
	fc := newFakeClient()
	rec := &eventRecorder{}
	sup := NewSupervisor("bot-1", fc, 5, 50*time.Millisecond, rec.handle)

	require.NoError(t, sup.Connect(context.Background()))
	fc.emitConnected()
	require.True(t, rec.waitFor(KindConnected, time.Second))

	fc.emitDisconnected("connection reset by peer")
	require.True(t, rec.waitFor(KindDisconnected, time.Second))

	sup.StopReconnecting()
	sup.Disconnect()

	// a late-firing timer must not dial again
	time.Sleep(150 * time.Millisecond)
	connects, _, _ := fc.calls()
	assert.Equal(t, 1, connects)
}

func TestSupervisorCounterResetsOnReconnect(t *testing.T) {
	fc := newFakeClient()
	rec := &eventRecorder{}
	sup := NewSupervisor("bot-1", fc, 1, time.Millisecond, rec.handle)
	defer sup.Disconnect()

	require.NoError(t, sup.Connect(context.Background()))
	fc.emitConnected()
	require.True(t, rec.waitFor(KindConnected, time.Second))

	// first drop: consumes the single allowed retry, which succeeds
	fc.emitDisconnected("connection reset by peer")
	require.Eventually(t, func() bool {
		connects, _, _ := fc.calls()
		return connects == 2
	}, time.Second, 2*time.Millisecond)

	fc.emitConnected()
	require.Eventually(t, func() bool { return rec.count(KindConnected) == 2 }, time.Second, 2*time.Millisecond)

	// second drop: the counter was reset, so another retry is allowed
	fc.emitDisconnected("connection reset by peer")
	require.Eventually(t, func() bool {
		connects, _, _ := fc.calls()
		return connects == 3
	}, time.Second, 2*time.Millisecond)

	assert.Equal(t, 0, rec.count(KindExhausted))
}

func TestSupervisorPolicyKickStillRetries(t *testing.T) {
	fc := newFakeClient()
	rec := &eventRecorder{}
	sup := NewSupervisor("bot-1", fc, 5, time.Millisecond, rec.handle)
	defer sup.Disconnect()

	require.NoError(t, sup.Connect(context.Background()))
	fc.emitConnected()
	require.True(t, rec.waitFor(KindConnected, time.Second))

	fc.emitKicked("You are banned from this server", false)
	require.True(t, rec.waitFor(KindKicked, time.Second))

	rec.mu.Lock()
	var kicked Event
	for _, ev := range rec.events {
		if ev.Kind == KindKicked {
			kicked = ev
		}
	}
	rec.mu.Unlock()
	assert.False(t, kicked.ServerDown)
	assert.Equal(t, "You are banned from this server", kicked.Reason)

	// the rejection still flows through the shared retry counter
	require.Eventually(t, func() bool {
		connects, _, _ := fc.calls()
		return connects >= 2
	}, time.Second, 2*time.Millisecond)
}

func TestSupervisorForceDisconnect(t *testing.T) {
	fc := newFakeClient()
	sup := NewSupervisor("bot-1", fc, 5, time.Millisecond, nil)

	require.NoError(t, sup.Connect(context.Background()))
	sup.ForceDisconnect()

	_, _, forces := fc.calls()
	assert.Equal(t, 1, forces)
	assert.False(t, sup.IsAlive())
}
