package scoring

import (
	"context"
	"net/url"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
)

// MatchFetcher loads match snapshots.
type MatchFetcher interface {
	FetchMatch(ctx context.Context, sport matchscore.Sport, matchID string) (*matchscore.Match, error)
}

// ScoreUpdater applies a single ball/event.
type ScoreUpdater interface {
	UpdateBallStats(ctx context.Context, sport matchscore.Sport, matchID string, payload matchscore.Payload) error
}

// StatusUpdater moves a match through its lifecycle.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, sport matchscore.Sport, matchID string, params url.Values) error
}

// RosterFetcher loads team rosters.
type RosterFetcher interface {
	FetchTeam(ctx context.Context, teamID string) (*matchscore.Team, error)
}

// MatchAPI is everything a scoring session needs from the backend.
// *matchscore.Client implements it.
type MatchAPI interface {
	MatchFetcher
	ScoreUpdater
	StatusUpdater
	RosterFetcher
}

// ScoreEvent is the journal record of one submission attempt.
type ScoreEvent struct {
	MatchID   string
	Sport     matchscore.Sport
	SessionID string
	Action    Action
	Payload   matchscore.Payload
	Succeeded bool
	Error     string
	Latency   time.Duration
	At        time.Time
}

// TransitionRecord is the journal record of one status change attempt.
type TransitionRecord struct {
	MatchID    string
	Sport      matchscore.Sport
	SessionID  string
	From       matchscore.Status
	To         matchscore.Status
	TossWinner string
	TossChoice TossChoice
	Succeeded  bool
	Error      string
	At         time.Time
}

// Journal records every mutation the desk attempts. Failures to record are
// logged by the caller and never fail the workflow.
type Journal interface {
	RecordScoreEvent(ctx context.Context, ev ScoreEvent) error
	RecordTransition(ctx context.Context, tr TransitionRecord) error
}

// Journals fans records out to several journals, returning the first error.
type Journals []Journal

// RecordScoreEvent records ev in every journal.
func (j Journals) RecordScoreEvent(ctx context.Context, ev ScoreEvent) error {
	var first error
	for _, journal := range j {
		if journal == nil {
			continue
		}
		if err := journal.RecordScoreEvent(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordTransition records tr in every journal.
func (j Journals) RecordTransition(ctx context.Context, tr TransitionRecord) error {
	var first error
	for _, journal := range j {
		if journal == nil {
			continue
		}
		if err := journal.RecordTransition(ctx, tr); err != nil && first == nil {
			first = err
		}
	}
	return first
}
