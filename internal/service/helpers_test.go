package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexochat/hub-api/internal/models"
)

type sinkEvent struct {
	Scope   string
	Target  string
	Event   string
	Payload interface{}
}

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordingSink) BroadcastRoom(_ context.Context, roomID, event string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{Scope: "room", Target: roomID, Event: event, Payload: payload})
}

func (s *recordingSink) SendToUser(_ context.Context, userID, event string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{Scope: "user", Target: userID, Event: event, Payload: payload})
}

func (s *recordingSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sinkEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) byEvent(event string) []sinkEvent {
	var out []sinkEvent
	for _, e := range s.all() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.HiddenMessage{},
		&models.Reaction{},
	))
	return db
}

func seedChatFixtures(t *testing.T, db *gorm.DB) {
	t.Helper()

	users := []models.User{
		{ID: "alice", Username: "Alice", Avatar: "/uploads/alice.png"},
		{ID: "bob", Username: "Bob"},
		{ID: "carol", Username: "Carol"},
	}
	for i := range users {
		require.NoError(t, db.Create(&users[i]).Error)
	}

	rooms := []models.Room{
		{ID: "general", Name: "General", CreatedBy: "alice"},
		{ID: "vault", Name: "Vault", Password: "secret123", CreatedBy: "alice"},
	}
	for i := range rooms {
		require.NoError(t, db.Create(&rooms[i]).Error)
	}

	members := []models.RoomMember{
		{RoomID: "general", UserID: "alice"},
		{RoomID: "general", UserID: "bob"},
		{RoomID: "vault", UserID: "alice"},
	}
	for i := range members {
		require.NoError(t, db.Create(&members[i]).Error)
	}
}
