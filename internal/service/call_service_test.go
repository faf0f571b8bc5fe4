package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nexochat/hub-api/internal/dto"
)

func TestCallServiceFullSessionLifecycle(t *testing.T) {
	sink := &recordingSink{}
	svc := NewCallService(sink, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, "alice", "bob", true))

	state, active := svc.SessionState("alice", "bob")
	require.True(t, active)
	require.Equal(t, CallStateRinging, state)

	incoming := sink.byEvent(dto.EventIncomingCall)
	require.Len(t, incoming, 1)
	require.Equal(t, "bob", incoming[0].Target)
	require.Equal(t, dto.IncomingCallEvent{FromUserID: "alice", IsVideo: true}, incoming[0].Payload)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	require.NoError(t, svc.Offer(ctx, "alice", "bob", offer))
	require.NoError(t, svc.Answer(ctx, "bob", "alice", json.RawMessage(`{"type":"answer"}`)))

	state, active = svc.SessionState("bob", "alice")
	require.True(t, active)
	require.Equal(t, CallStateInCall, state)

	// Candidates flow both ways while the session lives.
	require.NoError(t, svc.Candidate(ctx, "alice", "bob", json.RawMessage(`{"candidate":"a"}`)))
	require.NoError(t, svc.Candidate(ctx, "bob", "alice", json.RawMessage(`{"candidate":"b"}`)))

	require.NoError(t, svc.Hangup(ctx, "bob", "alice"))
	_, active = svc.SessionState("alice", "bob")
	require.False(t, active)

	hangups := sink.byEvent(dto.EventCallHangup)
	require.Len(t, hangups, 1)
	require.Equal(t, "alice", hangups[0].Target)
}

func TestCallServicePairIsBusyRegardlessOfDirection(t *testing.T) {
	sink := &recordingSink{}
	svc := NewCallService(sink, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, "alice", "bob", false))

	require.ErrorIs(t, svc.Start(ctx, "alice", "bob", false), ErrCallBusy)
	// The reverse direction hits the same session.
	require.ErrorIs(t, svc.Start(ctx, "bob", "alice", false), ErrCallBusy)

	// A different pair is unaffected.
	require.NoError(t, svc.Start(ctx, "alice", "carol", false))
}

func TestCallServiceRejectsSelfCall(t *testing.T) {
	svc := NewCallService(&recordingSink{}, zerolog.Nop())

	require.ErrorIs(t, svc.Start(context.Background(), "alice", "alice", false), ErrCallToSelf)
	require.ErrorIs(t, svc.Start(context.Background(), "alice", "  ", false), ErrCallToSelf)
}

func TestCallServiceOnlyCalleeMayAnswer(t *testing.T) {
	sink := &recordingSink{}
	svc := NewCallService(sink, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, "alice", "bob", false))
	require.ErrorIs(t, svc.Answer(ctx, "alice", "bob", nil), ErrNotCallee)

	state, _ := svc.SessionState("alice", "bob")
	require.Equal(t, CallStateRinging, state)
}

func TestCallServiceRelayRefusedWithoutSession(t *testing.T) {
	sink := &recordingSink{}
	svc := NewCallService(sink, zerolog.Nop())
	ctx := context.Background()

	require.ErrorIs(t, svc.Offer(ctx, "alice", "bob", nil), ErrCallNotFound)
	require.ErrorIs(t, svc.Candidate(ctx, "alice", "bob", nil), ErrCallNotFound)
	require.ErrorIs(t, svc.Answer(ctx, "bob", "alice", nil), ErrCallNotFound)

	require.NoError(t, svc.Start(ctx, "alice", "bob", false))
	require.NoError(t, svc.Hangup(ctx, "alice", "bob"))

	// A stale candidate arriving after hangup must not reach the other party.
	require.ErrorIs(t, svc.Candidate(ctx, "alice", "bob", json.RawMessage(`{}`)), ErrCallNotFound)
	require.Empty(t, sink.byEvent(dto.EventCallCandidate))
}

func TestCallServiceHangupWithoutSessionIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	svc := NewCallService(sink, zerolog.Nop())

	require.NoError(t, svc.Hangup(context.Background(), "alice", "bob"))
	require.Empty(t, sink.all())
}

func TestCallServiceDisconnectEndsAllSessions(t *testing.T) {
	sink := &recordingSink{}
	svc := NewCallService(sink, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx, "alice", "bob", false))
	require.NoError(t, svc.Start(ctx, "carol", "alice", false))

	svc.HandleUserOffline("alice")

	_, active := svc.SessionState("alice", "bob")
	require.False(t, active)
	_, active = svc.SessionState("carol", "alice")
	require.False(t, active)

	hangups := sink.byEvent(dto.EventCallHangup)
	require.Len(t, hangups, 2)
	notified := map[string]bool{}
	for _, h := range hangups {
		notified[h.Target] = true
		require.Equal(t, dto.CallHangupEvent{FromUserID: "alice"}, h.Payload)
	}
	require.True(t, notified["bob"])
	require.True(t, notified["carol"])
}
