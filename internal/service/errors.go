package service

import "errors"

var (
	// ErrRoomLocked indicates the supplied room secret did not match.
	ErrRoomLocked = errors.New("room is locked")
	// ErrRoomNotFound indicates the room record no longer exists.
	ErrRoomNotFound = errors.New("room not found")
	// ErrMessageNotFound indicates the message no longer exists.
	ErrMessageNotFound = errors.New("message not found")
	// ErrSenderNotFound indicates the sender identity could not be resolved.
	ErrSenderNotFound = errors.New("sender not found")
	// ErrEmptyMessage indicates a send with neither content nor attachment.
	ErrEmptyMessage = errors.New("message requires content or attachment")
	// ErrAttachmentRequired indicates a non-text kind without an attachment.
	ErrAttachmentRequired = errors.New("message kind requires an attachment")
	// ErrUnexpectedAttachment indicates a text message carrying an attachment.
	ErrUnexpectedAttachment = errors.New("text messages cannot carry an attachment")
	// ErrCallBusy indicates a call-start for a pair that already has a session.
	ErrCallBusy = errors.New("call session already exists for pair")
	// ErrCallNotFound indicates a signal for a pair with no active session.
	ErrCallNotFound = errors.New("no call session for pair")
	// ErrCallToSelf indicates a user attempted to call themselves.
	ErrCallToSelf = errors.New("cannot start a call with yourself")
	// ErrNotCallee indicates an answer from the party that placed the call.
	ErrNotCallee = errors.New("only the callee can answer")
)
