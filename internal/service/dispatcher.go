package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/dto"
)

const lastMessageTTLDefault = 30 * time.Minute

// EventSink is the fire-and-forget delivery interface services emit through.
// Delivery is at-most-once: calls return nothing and cannot fail visibly.
type EventSink interface {
	BroadcastRoom(ctx context.Context, roomID, event string, payload interface{})
	SendToUser(ctx context.Context, userID, event string, payload interface{})
}

// MessageCache stores the most recent message per room for replay on join.
type MessageCache interface {
	StoreLastMessage(ctx context.Context, message dto.MessageResponse)
	LastMessage(ctx context.Context, roomID string) *dto.MessageResponse
}

// hubEnvelope is the cross-node wire format published to redis and NATS.
type hubEnvelope struct {
	Source string          `json:"source"`
	Scope  string          `json:"scope"`
	Target string          `json:"target"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// Dispatcher fans events out to local connections via the registry and
// bridges them to sibling nodes over redis pub/sub and NATS. Both brokers are
// optional; with neither configured the dispatcher is local-only.
type Dispatcher struct {
	registry    *Registry
	redis       *redis.Client
	nats        *nats.Conn
	stream      string
	cachePrefix string
	natsSubject string
	nodeID      string
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewDispatcher creates the event dispatcher. channelBase namespaces the
// redis channel, cache keys and NATS subject.
func NewDispatcher(registry *Registry, redisClient *redis.Client, natsConn *nats.Conn, channelBase string, cacheTTL time.Duration, logger zerolog.Logger) *Dispatcher {
	stream := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		stream = channelBase + ":events"
		cachePrefix = channelBase + ":last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	if cacheTTL <= 0 {
		cacheTTL = lastMessageTTLDefault
	}

	return &Dispatcher{
		registry:    registry,
		redis:       redisClient,
		nats:        natsConn,
		stream:      stream,
		cachePrefix: cachePrefix,
		natsSubject: natsSubject,
		nodeID:      uuid.NewString(),
		cacheTTL:    cacheTTL,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Start launches the broker consumers. Safe to call with no brokers configured.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.redis != nil && d.stream != "" {
		go d.consumeRedis(ctx)
	}
	if d.nats != nil && d.natsSubject != "" {
		go d.consumeNATS(ctx)
	}
}

// BroadcastRoom delivers the event to every local connection joined to the
// room and publishes it for sibling nodes.
func (d *Dispatcher) BroadcastRoom(ctx context.Context, roomID, event string, payload interface{}) {
	d.registry.Broadcast(roomID, dto.Event{Event: event, Data: payload})
	d.publish(ctx, "room", roomID, event, payload)
}

// SendToUser delivers the event to every local connection of the user and
// publishes it for sibling nodes, where the user may be connected instead.
func (d *Dispatcher) SendToUser(ctx context.Context, userID, event string, payload interface{}) {
	d.registry.SendToUser(userID, dto.Event{Event: event, Data: payload})
	d.publish(ctx, "user", userID, event, payload)
}

// StoreLastMessage caches the newest message for a room with a TTL.
func (d *Dispatcher) StoreLastMessage(ctx context.Context, message dto.MessageResponse) {
	if d.redis == nil || d.cachePrefix == "" {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to marshal message for cache")
		return
	}

	key := fmt.Sprintf("%s:%s", d.cachePrefix, message.RoomID)
	if err := d.redis.Set(ctx, key, payload, d.cacheTTL).Err(); err != nil {
		d.logger.Warn().Err(err).Msg("failed to cache last message")
	}
}

// LastMessage returns the cached newest message for a room, if any.
func (d *Dispatcher) LastMessage(ctx context.Context, roomID string) *dto.MessageResponse {
	if d.redis == nil || d.cachePrefix == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%s", d.cachePrefix, roomID)
	result, err := d.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var message dto.MessageResponse
	if err := json.Unmarshal([]byte(result), &message); err != nil {
		d.logger.Warn().Err(err).Msg("failed to unmarshal cached message")
		return nil
	}

	return &message
}

func (d *Dispatcher) publish(ctx context.Context, scope, target, event string, payload interface{}) {
	if (d.redis == nil || d.stream == "") && (d.nats == nil || d.natsSubject == "") {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Warn().Err(err).Str("event", event).Msg("failed to marshal event payload")
		return
	}

	envelope := hubEnvelope{
		Source: d.nodeID,
		Scope:  scope,
		Target: target,
		Event:  event,
		Data:   data,
		SentAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(envelope)
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed to marshal event envelope")
		return
	}

	if d.redis != nil && d.stream != "" {
		if err := d.redis.Publish(ctx, d.stream, raw).Err(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to publish event to redis")
		}
	}

	if d.nats != nil && d.natsSubject != "" {
		if err := d.nats.Publish(d.natsSubject, raw); err != nil {
			d.logger.Warn().Err(err).Msg("failed to publish event to nats")
		}
	}
}

func (d *Dispatcher) consumeRedis(ctx context.Context) {
	pubsub := d.redis.Subscribe(ctx, d.stream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error().Err(err).Msg("redis event subscription closed")
			return
		}
		d.handleEnvelope([]byte(msg.Payload))
	}
}

func (d *Dispatcher) consumeNATS(ctx context.Context) {
	sub, err := d.nats.QueueSubscribe(d.natsSubject, "nexo-hub", func(msg *nats.Msg) {
		d.handleEnvelope(msg.Data)
	})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to subscribe to nats event subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			d.logger.Warn().Err(err).Msg("failed to drain nats event subscription")
		}
	}()
}

func (d *Dispatcher) handleEnvelope(data []byte) {
	var envelope hubEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		d.logger.Warn().Err(err).Msg("invalid event envelope")
		return
	}

	if envelope.Source == d.nodeID {
		return
	}

	event := dto.Event{Event: envelope.Event, Data: envelope.Data}
	switch envelope.Scope {
	case "room":
		d.registry.Broadcast(envelope.Target, event)
	case "user":
		d.registry.SendToUser(envelope.Target, event)
	default:
		d.logger.Warn().Str("scope", envelope.Scope).Msg("unknown envelope scope")
	}
}
