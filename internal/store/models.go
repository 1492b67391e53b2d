package store

import (
	"encoding/json"
	"time"
)

// Journal row statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ScoreEvent is one journaled score update attempt
type ScoreEvent struct {
	ID        int64           `json:"id" db:"id"`
	MatchID   string          `json:"match_id" db:"match_id"`
	Sport     string          `json:"sport" db:"sport"`
	SessionID string          `json:"session_id" db:"session_id"`
	Action    string          `json:"action" db:"action"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	Status    string          `json:"status" db:"status"`
	Error     *string         `json:"error,omitempty" db:"error"`
	LatencyMS int             `json:"latency_ms" db:"latency_ms"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// StatusTransition is one journaled lifecycle change attempt
type StatusTransition struct {
	ID         int64     `json:"id" db:"id"`
	MatchID    string    `json:"match_id" db:"match_id"`
	Sport      string    `json:"sport" db:"sport"`
	SessionID  string    `json:"session_id" db:"session_id"`
	FromStatus string    `json:"from_status" db:"from_status"`
	ToStatus   string    `json:"to_status" db:"to_status"`
	TossWinner *string   `json:"toss_winner,omitempty" db:"toss_winner"`
	TossChoice *string   `json:"toss_choice,omitempty" db:"toss_choice"`
	Status     string    `json:"status" db:"status"`
	Error      *string   `json:"error,omitempty" db:"error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Journal is everything recorded for one match.
type Journal struct {
	MatchID     string              `json:"match_id"`
	ScoreEvents []*ScoreEvent       `json:"score_events"`
	Transitions []*StatusTransition `json:"transitions"`
}
