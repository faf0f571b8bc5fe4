package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/dto"
	"github.com/nexochat/hub-api/internal/models"
	"github.com/nexochat/hub-api/internal/repository"
)

func newMessageService(t *testing.T, db *gorm.DB, sink EventSink) MessageService {
	t.Helper()
	roomRepo := repository.NewRoomRepository(db)
	return NewMessageService(
		repository.NewMessageRepository(db),
		repository.NewUserRepository(db),
		roomRepo,
		NewAccessService(roomRepo, zerolog.Nop()),
		sink,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)
}

func TestMessageServiceSendBroadcastsDenormalizedMessage(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	response, err := svc.Send(context.Background(), "alice", dto.SendMessageRequest{
		RoomID:  "general",
		Content: "hola <script>alert(1)</script>mundo",
		Kind:    "text",
	})
	require.NoError(t, err)
	require.Equal(t, "hola mundo", response.Content)
	require.Equal(t, "Alice", response.Username)
	require.Equal(t, "/uploads/alice.png", response.Avatar)
	require.False(t, response.IsDeleted)

	events := sink.byEvent(dto.EventReceiveMessage)
	require.Len(t, events, 1)
	require.Equal(t, "room", events[0].Scope)
	require.Equal(t, "general", events[0].Target)
	require.Equal(t, response, events[0].Payload)
}

func TestMessageServiceSendRejectsEmptyAndInconsistentPayloads(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	ctx := context.Background()

	_, err := svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "general", Kind: "text"})
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "general", Kind: "image", Content: "caption"})
	require.ErrorIs(t, err, ErrAttachmentRequired)

	_, err = svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "general", Kind: "text", Content: "hey", AttachmentRef: "/uploads/x.png"})
	require.ErrorIs(t, err, ErrUnexpectedAttachment)

	_, err = svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "missing", Kind: "text", Content: "hey"})
	require.ErrorIs(t, err, ErrRoomNotFound)

	require.Empty(t, sink.all(), "no broadcast may be emitted for rejected sends")
}

func TestMessageServiceSendToLockedRoomRequiresMembership(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	ctx := context.Background()

	_, err := svc.Send(ctx, "bob", dto.SendMessageRequest{RoomID: "vault", Kind: "text", Content: "let me in"})
	require.ErrorIs(t, err, ErrRoomLocked)

	_, err = svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "vault", Kind: "text", Content: "members only"})
	require.NoError(t, err)
}

func TestMessageServiceDeleteTiersVisibleDeletedRemoved(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	ctx := context.Background()
	sent, err := svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "general", Kind: "text", Content: "going soon"})
	require.NoError(t, err)

	// First sender delete: soft delete, row kept.
	require.NoError(t, svc.Delete(ctx, "alice", sent.ID))
	deleted := sink.byEvent(dto.EventMessageDeleted)
	require.Len(t, deleted, 1)
	require.Equal(t, "general", deleted[0].Target)

	var stored models.Message
	require.NoError(t, db.First(&stored, sent.ID).Error)
	require.Equal(t, models.TierDeleted, stored.Tier)

	// Second sender delete: hard delete, row removed.
	require.NoError(t, svc.Delete(ctx, "alice", sent.ID))
	gone := sink.byEvent(dto.EventMessageGone)
	require.Len(t, gone, 1)

	err = db.First(&stored, sent.ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// Third delete: message is gone, no-op.
	require.ErrorIs(t, svc.Delete(ctx, "alice", sent.ID), ErrMessageNotFound)
	require.Len(t, sink.byEvent(dto.EventMessageGone), 1)
}

func TestMessageServiceDeleteByNonSenderHidesForActorOnly(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	ctx := context.Background()
	sent, err := svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "general", Kind: "text", Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "bob", sent.ID))

	hidden := sink.byEvent(dto.EventMessageHidden)
	require.Len(t, hidden, 1)
	require.Equal(t, "user", hidden[0].Scope)
	require.Equal(t, "bob", hidden[0].Target)

	// The message itself stays fully intact.
	var stored models.Message
	require.NoError(t, db.First(&stored, sent.ID).Error)
	require.Equal(t, models.TierVisible, stored.Tier)

	forBob, err := svc.History(ctx, "general", "bob")
	require.NoError(t, err)
	require.Empty(t, forBob)

	forAlice, err := svc.History(ctx, "general", "alice")
	require.NoError(t, err)
	require.Len(t, forAlice, 1)
	require.Equal(t, "hi", forAlice[0].Content)
	require.False(t, forAlice[0].IsDeleted)
}

func TestMessageServiceHistoryKeepsSoftDeletedAsTombstones(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	ctx := context.Background()
	sent, err := svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "general", Kind: "text", Content: "soon a tombstone"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", sent.ID))

	history, err := svc.History(ctx, "general", "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].IsDeleted)
}

func TestMessageServiceGetHistoryEnforcesPasswordGate(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	svc := newMessageService(t, db, sink)

	ctx := context.Background()
	_, err := svc.Send(ctx, "alice", dto.SendMessageRequest{RoomID: "vault", Kind: "text", Content: "classified"})
	require.NoError(t, err)

	_, err = svc.GetHistory(ctx, "vault", "alice", "")
	require.ErrorIs(t, err, ErrRoomLocked)

	_, err = svc.GetHistory(ctx, "vault", "alice", "wrong")
	require.ErrorIs(t, err, ErrRoomLocked)

	history, err := svc.GetHistory(ctx, "vault", "alice", "secret123")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "classified", history[0].Content)
}

type failingMessageRepo struct {
	repository.MessageRepository
}

func (f *failingMessageRepo) Save(context.Context, *models.Message) error {
	return errors.New("disk full")
}

func TestMessageServiceSendDoesNotBroadcastOnPersistFailure(t *testing.T) {
	db := setupTestDB(t)
	seedChatFixtures(t, db)
	sink := &recordingSink{}
	roomRepo := repository.NewRoomRepository(db)
	svc := NewMessageService(
		&failingMessageRepo{MessageRepository: repository.NewMessageRepository(db)},
		repository.NewUserRepository(db),
		roomRepo,
		NewAccessService(roomRepo, zerolog.Nop()),
		sink,
		nil,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)

	_, err := svc.Send(context.Background(), "alice", dto.SendMessageRequest{RoomID: "general", Kind: "text", Content: "lost"})
	require.Error(t, err)
	require.Empty(t, sink.all(), "clients must never observe a broadcast for state that failed to persist")
}
