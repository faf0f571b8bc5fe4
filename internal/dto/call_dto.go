package dto

import "encoding/json"

// CallStartRequest initiates a call towards another user.
type CallStartRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,max=64"`
	IsVideo  bool   `json:"is_video"`
}

// CallSignalRequest carries an SDP offer/answer or an ICE candidate to be
// relayed verbatim to the other party. The hub never inspects Payload.
type CallSignalRequest struct {
	ToUserID string          `json:"to_user_id" validate:"required,max=64"`
	Payload  json.RawMessage `json:"payload"`
}

// CallHangupRequest terminates or rejects a call with the given user.
type CallHangupRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,max=64"`
}

// IncomingCallEvent notifies the callee that a call is ringing.
type IncomingCallEvent struct {
	FromUserID string `json:"from_user_id"`
	IsVideo    bool   `json:"is_video"`
}

// CallSignalEvent mirrors a relayed offer, answer or candidate.
type CallSignalEvent struct {
	FromUserID string          `json:"from_user_id"`
	Payload    json.RawMessage `json:"payload"`
}

// CallHangupEvent notifies the remaining party that the session ended.
type CallHangupEvent struct {
	FromUserID string `json:"from_user_id"`
}
