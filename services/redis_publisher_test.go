package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisPublisherPublishesAndRecords(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	p := NewRedisPublisher(client, time.Hour, nil)
	id := uuid.New()

	sub := client.Subscribe(ctx, SessionChannel(id))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p.OnEvent(NewGameStartedEvent(id, 2, 3))
	p.OnEvent(NewGameFinishedEvent(id, 3, 2))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"type":"game_started"`)

	history, err := p.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, KindGameStarted, history[0].Type)
	assert.Equal(t, KindGameFinished, history[1].Type)
	assert.Equal(t, id, history[1].GameSessionID)

	assert.Equal(t, time.Hour, mr.TTL(sessionHistoryKey(id)))

	empty, err := p.History(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisPublisherCapsHistory(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	p := NewRedisPublisher(client, 0, nil)
	p.historyLimit = 3
	id := uuid.New()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Publish(ctx, NewQuestionAdvancedEvent(id, i, i+1)))
	}

	history, err := p.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Contains(t, string(history[0].Payload), `"previous_index":2`)
	assert.Equal(t, defaultHistoryTTL, p.historyTTL)
}

func TestRedisPublisherLogsFailures(t *testing.T) {
	mr, client := newTestRedis(t)
	p := NewRedisPublisher(client, time.Minute, nil)
	mr.Close()

	err := p.Publish(context.Background(), NewGameStartedEvent(uuid.New(), 1, 1))
	assert.Error(t, err)
	assert.NotPanics(t, func() { p.OnEvent(NewGameStartedEvent(uuid.New(), 1, 1)) })
}

func TestRedisPublisherHidesAnswersUntilQuestionCloses(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	p := NewRedisPublisher(client, 0, nil)
	id := uuid.New()
	player, question, variant := uuid.New(), uuid.New(), uuid.New()

	p.OnEvent(NewAnswerSubmittedEvent(id, player, question, variant, true, "Alice"))
	p.OnEvent(NewPlayerScoreUpdatedEvent(id, player, "Alice", 0, 10))

	history, err := p.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, KindAnswerSubmitted, history[0].Type)
	assert.NotContains(t, string(history[0].Payload), "is_correct")
	assert.NotContains(t, string(history[0].Payload), variant.String())

	p.OnEvent(NewAllPlayersAnsweredEvent(id, question, 0, 1, 1))

	history, err = p.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, KindAllPlayersAnswered, history[1].Type)
	assert.Equal(t, KindPlayerScoreUpdated, history[2].Type)
}
