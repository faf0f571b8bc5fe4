package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/observability"
)

// CallState is the lifecycle state of a signaling session.
type CallState string

const (
	// CallStateRinging covers the caller's "calling" and the callee's
	// "incoming" perspective of the same session.
	CallStateRinging CallState = "ringing"
	CallStateInCall  CallState = "in_call"
)

// callSession is ephemeral coordinator state. Sessions are never persisted
// and do not survive a process restart.
type callSession struct {
	caller    string
	callee    string
	isVideo   bool
	state     CallState
	startedAt time.Time
}

func (s *callSession) other(userID string) string {
	if userID == s.caller {
		return s.callee
	}
	return s.caller
}

// CallService runs the offer/answer/ICE/hangup state machine for exactly one
// session per user pair. Payloads are relayed verbatim; the hub never
// inspects or stores media content.
type CallService struct {
	mu       sync.Mutex
	sessions map[string]*callSession
	sink     EventSink
	logger   zerolog.Logger
}

// NewCallService creates the call signaling coordinator.
func NewCallService(sink EventSink, logger zerolog.Logger) *CallService {
	return &CallService{
		sessions: make(map[string]*callSession),
		sink:     sink,
		logger:   logger.With().Str("component", "call_service").Logger(),
	}
}

// pairKey canonicalizes the unordered user pair. One session exists per pair
// regardless of who called whom, so when both sides dial at the same instant
// the first processed start wins and the second gets busy.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Start creates a ringing session and notifies the callee. A pair with any
// existing session is busy.
func (s *CallService) Start(ctx context.Context, callerID, calleeID string, isVideo bool) error {
	calleeID = strings.TrimSpace(calleeID)
	if calleeID == "" || calleeID == callerID {
		return ErrCallToSelf
	}

	s.mu.Lock()
	key := pairKey(callerID, calleeID)
	if _, exists := s.sessions[key]; exists {
		s.mu.Unlock()
		return ErrCallBusy
	}
	s.sessions[key] = &callSession{
		caller:    callerID,
		callee:    calleeID,
		isVideo:   isVideo,
		state:     CallStateRinging,
		startedAt: time.Now(),
	}
	s.mu.Unlock()

	observability.HubCallSessions().Inc()
	s.logger.Info().Str("caller", callerID).Str("callee", calleeID).Bool("video", isVideo).Msg("call started")

	s.sink.SendToUser(ctx, calleeID, dto.EventIncomingCall, dto.IncomingCallEvent{
		FromUserID: callerID,
		IsVideo:    isVideo,
	})
	return nil
}

// Offer relays the caller's SDP offer to the other party.
func (s *CallService) Offer(ctx context.Context, fromID, toID string, payload json.RawMessage) error {
	return s.relay(ctx, fromID, toID, dto.EventCallOffer, payload)
}

// Answer moves a ringing session to in_call and relays the answer to the
// caller. Only the callee may answer.
func (s *CallService) Answer(ctx context.Context, fromID, toID string, payload json.RawMessage) error {
	s.mu.Lock()
	session, exists := s.sessions[pairKey(fromID, toID)]
	if !exists {
		s.mu.Unlock()
		return ErrCallNotFound
	}
	if session.callee != fromID {
		s.mu.Unlock()
		return ErrNotCallee
	}
	session.state = CallStateInCall
	s.mu.Unlock()

	s.logger.Info().Str("caller", session.caller).Str("callee", session.callee).Msg("call answered")

	s.sink.SendToUser(ctx, toID, dto.EventCallAnswer, dto.CallSignalEvent{
		FromUserID: fromID,
		Payload:    payload,
	})
	return nil
}

// Candidate relays an ICE candidate verbatim, in any order, for the lifetime
// of the session.
func (s *CallService) Candidate(ctx context.Context, fromID, toID string, payload json.RawMessage) error {
	return s.relay(ctx, fromID, toID, dto.EventCallCandidate, payload)
}

// Hangup destroys the session and notifies the other party. It covers both
// rejection while ringing and termination while in call. Hanging up a pair
// with no session is a no-op.
func (s *CallService) Hangup(ctx context.Context, fromID, toID string) error {
	s.mu.Lock()
	key := pairKey(fromID, toID)
	session, exists := s.sessions[key]
	if !exists {
		s.mu.Unlock()
		s.logger.Debug().Str("from", fromID).Str("to", toID).Msg("hangup for missing session ignored")
		return nil
	}
	delete(s.sessions, key)
	s.mu.Unlock()

	observability.HubCallSessions().Dec()
	s.logger.Info().Str("caller", session.caller).Str("callee", session.callee).Str("state", string(session.state)).Msg("call ended")

	s.sink.SendToUser(ctx, session.other(fromID), dto.EventCallHangup, dto.CallHangupEvent{FromUserID: fromID})
	return nil
}

// HandleUserOffline treats the loss of a user's last connection as an
// implicit hangup for every session the user is part of, with a best-effort
// hangup notice to the remaining party.
func (s *CallService) HandleUserOffline(userID string) {
	s.mu.Lock()
	var ended []*callSession
	for key, session := range s.sessions {
		if session.caller == userID || session.callee == userID {
			delete(s.sessions, key)
			ended = append(ended, session)
		}
	}
	s.mu.Unlock()

	for _, session := range ended {
		observability.HubCallSessions().Dec()
		s.logger.Info().Str("caller", session.caller).Str("callee", session.callee).Str("user_id", userID).Msg("call ended by disconnect")
		s.sink.SendToUser(context.Background(), session.other(userID), dto.EventCallHangup, dto.CallHangupEvent{FromUserID: userID})
	}
}

// SessionState reports the current state for a pair, or false when idle.
func (s *CallService) SessionState(a, b string) (CallState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[pairKey(a, b)]
	if !exists {
		return "", false
	}
	return session.state, true
}

func (s *CallService) relay(ctx context.Context, fromID, toID, event string, payload json.RawMessage) error {
	s.mu.Lock()
	_, exists := s.sessions[pairKey(fromID, toID)]
	s.mu.Unlock()

	if !exists {
		return ErrCallNotFound
	}

	s.sink.SendToUser(ctx, toID, event, dto.CallSignalEvent{
		FromUserID: fromID,
		Payload:    payload,
	})
	return nil
}
