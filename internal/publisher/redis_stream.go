package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
)

// MaxStreamLen caps every stream so a long tournament does not grow Redis
// without bound.
const MaxStreamLen = 10000

// SnapshotStream is the stream of applied snapshots for a sport.
func SnapshotStream(sport matchscore.Sport) string {
	return fmt.Sprintf("matches.live.%s", sport)
}

// EventStream is the stream of recorded scoring events for a sport.
func EventStream(sport matchscore.Sport) string {
	return fmt.Sprintf("matches.events.%s", sport)
}

// RedisStreamPublisher publishes events to Redis streams
type RedisStreamPublisher struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		logger: log.New(log.Writer(), "[publisher] ", log.LstdFlags),
	}
}

// PublishSnapshot publishes an applied match snapshot
func (rsp *RedisStreamPublisher) PublishSnapshot(ctx context.Context, snap scoring.Snapshot) error {
	if snap.Match == nil {
		return nil
	}
	return rsp.publish(ctx, SnapshotStream(snap.Match.Sport), snap.Match.ID, "snapshot", snap)
}

// RecordScoreEvent publishes a successful score update. Failed attempts are
// journaled but not streamed.
func (rsp *RedisStreamPublisher) RecordScoreEvent(ctx context.Context, ev scoring.ScoreEvent) error {
	if !ev.Succeeded {
		return nil
	}
	return rsp.publish(ctx, EventStream(ev.Sport), ev.MatchID, "score", map[string]interface{}{
		"action":     ev.Action,
		"payload":    ev.Payload,
		"session_id": ev.SessionID,
		"at":         ev.At,
	})
}

// RecordTransition publishes a successful status change.
func (rsp *RedisStreamPublisher) RecordTransition(ctx context.Context, tr scoring.TransitionRecord) error {
	if !tr.Succeeded {
		return nil
	}
	return rsp.publish(ctx, EventStream(tr.Sport), tr.MatchID, "status", map[string]interface{}{
		"from":        tr.From,
		"to":          tr.To,
		"toss_winner": tr.TossWinner,
		"toss_choice": tr.TossChoice,
		"session_id":  tr.SessionID,
		"at":          tr.At,
	})
}

// SnapshotHook returns a listener that streams every applied snapshot.
func (rsp *RedisStreamPublisher) SnapshotHook() func(scoring.Snapshot) {
	return func(snap scoring.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rsp.PublishSnapshot(ctx, snap); err != nil {
			rsp.logger.Printf("⚠️  %v", err)
		}
	}
}

func (rsp *RedisStreamPublisher) publish(ctx context.Context, stream, matchID, kind string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s for %s: %w", kind, matchID, err)
	}

	err = rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"match_id":  matchID,
			"kind":      kind,
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish %s for %s to %s: %w", kind, matchID, stream, err)
	}
	return nil
}
