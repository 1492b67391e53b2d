package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fortuna/scoredesk/internal/scoring"
	"github.com/fortuna/scoredesk/internal/store"
)

// DefaultListLimit caps journal listings when the caller asks for none.
const DefaultListLimit = 100

// JournalRepository persists the scoring journal. It implements scoring.Journal.
type JournalRepository struct {
	db *store.Database
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *store.Database) *JournalRepository {
	return &JournalRepository{db: db}
}

// RecordScoreEvent inserts one score update attempt
func (r *JournalRepository) RecordScoreEvent(ctx context.Context, ev scoring.ScoreEvent) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	query := `
		INSERT INTO score_events (match_id, sport, session_id, action, payload, status, error, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.DB().ExecContext(ctx, query,
		ev.MatchID, string(ev.Sport), ev.SessionID, string(ev.Action), payload,
		statusOf(ev.Succeeded), nullable(ev.Error), ev.Latency.Milliseconds(), ev.At,
	)
	if err != nil {
		return fmt.Errorf("inserting score event: %w", err)
	}
	return nil
}

// RecordTransition inserts one status change attempt
func (r *JournalRepository) RecordTransition(ctx context.Context, tr scoring.TransitionRecord) error {
	query := `
		INSERT INTO status_transitions (match_id, sport, session_id, from_status, to_status, toss_winner, toss_choice, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.DB().ExecContext(ctx, query,
		tr.MatchID, string(tr.Sport), tr.SessionID, string(tr.From), string(tr.To),
		nullable(tr.TossWinner), nullable(string(tr.TossChoice)),
		statusOf(tr.Succeeded), nullable(tr.Error), tr.At,
	)
	if err != nil {
		return fmt.Errorf("inserting status transition: %w", err)
	}
	return nil
}

// ListScoreEvents returns the newest score events for a match, newest first
func (r *JournalRepository) ListScoreEvents(ctx context.Context, matchID string, limit int) ([]*store.ScoreEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `
		SELECT id, match_id, sport, session_id, action, payload, status, error, latency_ms, created_at
		FROM score_events
		WHERE match_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.DB().QueryContext(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying score events: %w", err)
	}
	defer rows.Close()

	var events []*store.ScoreEvent
	for rows.Next() {
		ev := &store.ScoreEvent{}
		var payload []byte
		if err := rows.Scan(
			&ev.ID, &ev.MatchID, &ev.Sport, &ev.SessionID, &ev.Action, &payload,
			&ev.Status, &ev.Error, &ev.LatencyMS, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning score event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating score events: %w", err)
	}
	return events, nil
}

// ListTransitions returns the status changes recorded for a match, newest first
func (r *JournalRepository) ListTransitions(ctx context.Context, matchID string, limit int) ([]*store.StatusTransition, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `
		SELECT id, match_id, sport, session_id, from_status, to_status, toss_winner, toss_choice, status, error, created_at
		FROM status_transitions
		WHERE match_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.DB().QueryContext(ctx, query, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying status transitions: %w", err)
	}
	defer rows.Close()

	var transitions []*store.StatusTransition
	for rows.Next() {
		tr := &store.StatusTransition{}
		if err := rows.Scan(
			&tr.ID, &tr.MatchID, &tr.Sport, &tr.SessionID, &tr.FromStatus, &tr.ToStatus,
			&tr.TossWinner, &tr.TossChoice, &tr.Status, &tr.Error, &tr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning status transition: %w", err)
		}
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status transitions: %w", err)
	}
	return transitions, nil
}

// MatchJournal loads both journal tables for a match
func (r *JournalRepository) MatchJournal(ctx context.Context, matchID string, limit int) (*store.Journal, error) {
	events, err := r.ListScoreEvents(ctx, matchID, limit)
	if err != nil {
		return nil, err
	}
	transitions, err := r.ListTransitions(ctx, matchID, limit)
	if err != nil {
		return nil, err
	}
	return &store.Journal{MatchID: matchID, ScoreEvents: events, Transitions: transitions}, nil
}

func statusOf(ok bool) string {
	if ok {
		return store.StatusSuccess
	}
	return store.StatusFailed
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
