package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nexochat/hub-api/internal/dto"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return mr, client
}

func TestDispatcherLocalOnlyWithoutBrokers(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	client := NewClient(nil, "alice", zerolog.Nop())
	registry.Register(client)
	registry.Join(client, "general")

	d := NewDispatcher(registry, nil, nil, "", 0, zerolog.Nop())
	d.Start(context.Background())

	d.BroadcastRoom(context.Background(), "general", dto.EventReceiveMessage, "hello")
	d.SendToUser(context.Background(), "alice", dto.EventIncomingCall, "ring")

	events := drainEvents(client)
	require.Len(t, events, 2)
	require.Equal(t, dto.EventReceiveMessage, events[0].Event)
	require.Equal(t, dto.EventIncomingCall, events[1].Event)

	// The cache degrades to a miss rather than failing.
	require.Nil(t, d.LastMessage(context.Background(), "general"))
}

func TestDispatcherPublishesSourceTaggedEnvelope(t *testing.T) {
	_, redisClient := setupTestRedis(t)
	registry := NewRegistry(zerolog.Nop())
	d := NewDispatcher(registry, redisClient, nil, "nexo:hub", 0, zerolog.Nop())

	ctx := context.Background()
	pubsub := redisClient.Subscribe(ctx, "nexo:hub:events")
	t.Cleanup(func() {
		_ = pubsub.Close()
	})
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	d.BroadcastRoom(ctx, "general", dto.EventReceiveMessage, map[string]string{"content": "hi"})

	select {
	case msg := <-pubsub.Channel():
		var envelope hubEnvelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
		require.Equal(t, d.nodeID, envelope.Source)
		require.Equal(t, "room", envelope.Scope)
		require.Equal(t, "general", envelope.Target)
		require.Equal(t, dto.EventReceiveMessage, envelope.Event)
		require.JSONEq(t, `{"content":"hi"}`, string(envelope.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope published to redis")
	}
}

func TestDispatcherDropsOwnSourceEnvelopes(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	client := NewClient(nil, "alice", zerolog.Nop())
	registry.Register(client)
	registry.Join(client, "general")

	d := NewDispatcher(registry, nil, nil, "nexo:hub", 0, zerolog.Nop())

	own, err := json.Marshal(hubEnvelope{
		Source: d.nodeID,
		Scope:  "room",
		Target: "general",
		Event:  dto.EventReceiveMessage,
		Data:   json.RawMessage(`{"content":"echo"}`),
	})
	require.NoError(t, err)
	d.handleEnvelope(own)
	require.Empty(t, drainEvents(client), "a node must not re-deliver its own events")

	foreign, err := json.Marshal(hubEnvelope{
		Source: "some-other-node",
		Scope:  "room",
		Target: "general",
		Event:  dto.EventReceiveMessage,
		Data:   json.RawMessage(`{"content":"remote"}`),
	})
	require.NoError(t, err)
	d.handleEnvelope(foreign)
	require.Len(t, drainEvents(client), 1)
}

func TestDispatcherRoutesUserScopedEnvelopes(t *testing.T) {
	registry := NewRegistry(zerolog.Nop())
	client := NewClient(nil, "bob", zerolog.Nop())
	registry.Register(client)

	d := NewDispatcher(registry, nil, nil, "nexo:hub", 0, zerolog.Nop())

	envelope, err := json.Marshal(hubEnvelope{
		Source: "sibling",
		Scope:  "user",
		Target: "bob",
		Event:  dto.EventIncomingCall,
		Data:   json.RawMessage(`{"from_user_id":"alice"}`),
	})
	require.NoError(t, err)
	d.handleEnvelope(envelope)

	events := drainEvents(client)
	require.Len(t, events, 1)
	require.Equal(t, dto.EventIncomingCall, events[0].Event)
}

func TestDispatcherLastMessageCacheRoundTrip(t *testing.T) {
	mr, redisClient := setupTestRedis(t)
	registry := NewRegistry(zerolog.Nop())
	d := NewDispatcher(registry, redisClient, nil, "nexo:hub", time.Minute, zerolog.Nop())

	ctx := context.Background()
	message := dto.MessageResponse{ID: 42, RoomID: "general", SenderID: "alice", Content: "latest", Kind: "text"}
	d.StoreLastMessage(ctx, message)

	cached := d.LastMessage(ctx, "general")
	require.NotNil(t, cached)
	require.Equal(t, message.ID, cached.ID)
	require.Equal(t, "latest", cached.Content)

	require.Nil(t, d.LastMessage(ctx, "random"))

	mr.FastForward(2 * time.Minute)
	require.Nil(t, d.LastMessage(ctx, "general"), "cached message must expire")
}
