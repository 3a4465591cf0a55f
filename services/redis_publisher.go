package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit   = 500
	defaultHistoryTTL     = 2 * time.Hour
	defaultPublishTimeout = 2 * time.Second
)

// SessionChannel is the pub/sub channel carrying a session's events.
func SessionChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("quiz:session:%s:events", sessionID)
}

func sessionHistoryKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("quiz:session:%s:history", sessionID)
}

var _ Observer = (*RedisPublisher)(nil)

// RedisPublisher publishes the public form of every event to the session
// channel and keeps a capped, expiring list of recent events per session.
type RedisPublisher struct {
	AllEvents

	gate         *revealGate
	client       redis.UniversalClient
	historyLimit int64
	historyTTL   time.Duration
	timeout      time.Duration
	log          *zap.Logger
}

func NewRedisPublisher(client redis.UniversalClient, historyTTL time.Duration, log *zap.Logger) *RedisPublisher {
	if historyTTL <= 0 {
		historyTTL = defaultHistoryTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{
		gate:         newRevealGate(),
		client:       client,
		historyLimit: defaultHistoryLimit,
		historyTTL:   historyTTL,
		timeout:      defaultPublishTimeout,
		log:          log,
	}
}

// OnEvent publishes e, holding score updates until the question closes.
func (p *RedisPublisher) OnEvent(e Event) {
	for _, ev := range p.gate.admit(e) {
		p.publishOne(ev)
	}
}

func (p *RedisPublisher) publishOne(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.Publish(ctx, e); err != nil {
		p.log.Error("failed to publish event",
			zap.Stringer("event", e.Kind()),
			zap.String("game_session_id", e.GameSessionID().String()),
			zap.Error(err),
		)
	}
}

// Publish writes e immediately, bypassing the hold on score updates.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := MarshalPublicEvent(e)
	if err != nil {
		return err
	}

	key := sessionHistoryKey(e.GameSessionID())
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, SessionChannel(e.GameSessionID()), data)
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -p.historyLimit, -1)
		pipe.Expire(ctx, key, p.historyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Kind(), err)
	}
	return nil
}

// History returns the recorded events of a session, oldest first.
func (p *RedisPublisher) History(ctx context.Context, sessionID uuid.UUID) ([]EventEnvelope, error) {
	raw, err := p.client.LRange(ctx, sessionHistoryKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event history: %w", err)
	}

	events := make([]EventEnvelope, 0, len(raw))
	for _, item := range raw {
		var envelope EventEnvelope
		if err := json.Unmarshal([]byte(item), &envelope); err != nil {
			return nil, fmt.Errorf("decode event history: %w", err)
		}
		events = append(events, envelope)
	}
	return events, nil
}
