package scoring

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
)

// Refresher forces an out-of-band snapshot fetch.
type Refresher interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
}

// SubmitResult describes a successful submission.
type SubmitResult struct {
	Action     Action             `json:"action"`
	Payload    matchscore.Payload `json:"payload"`
	Snapshot   Snapshot           `json:"snapshot"`
	RefreshErr error              `json:"-"`
}

// SubmitterConfig wires a Submitter.
type SubmitterConfig struct {
	SessionID string
	// Gate is consulted before every submission; a non-nil error blocks it.
	Gate     func() error
	Notifier notify.Notifier
	Journal  Journal
	Logger   *log.Logger
}

// Submitter turns a complete selection into exactly one score update. At most
// one update per session is outstanding; the backend does not dedupe
// ball-by-ball events.
type Submitter struct {
	api       ScoreUpdater
	adapter   SportAdapter
	matchID   string
	sessionID string
	refresher Refresher
	gate      func() error
	notifier  notify.Notifier
	journal   Journal
	logger    *log.Logger

	inFlight atomic.Bool
}

// NewSubmitter creates a submitter for one match-edit session.
func NewSubmitter(api ScoreUpdater, adapter SportAdapter, matchID string, refresher Refresher, cfg SubmitterConfig) *Submitter {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[submitter] ", log.LstdFlags)
	}
	return &Submitter{
		api:       api,
		adapter:   adapter,
		matchID:   matchID,
		sessionID: cfg.SessionID,
		refresher: refresher,
		gate:      cfg.Gate,
		notifier:  cfg.Notifier,
		journal:   cfg.Journal,
		logger:    cfg.Logger,
	}
}

// InFlight reports whether a submission is outstanding.
func (s *Submitter) InFlight() bool {
	return s.inFlight.Load()
}

// Submit sends the selection. A call made while another is in flight returns
// ErrSubmissionInFlight without touching the network. On failure the selection
// is left as is so the admin can retry. The gate is consulted again once the
// slot is taken and before the follow-up refresh.
func (s *Submitter) Submit(ctx context.Context, sel *Selection) (*SubmitResult, error) {
	if err := s.checkGate(); err != nil {
		return nil, err
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Printf("ignoring submit for %s: previous update still in flight", s.matchID)
		return nil, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	// the match may have been completed or closed while waiting for the slot
	if err := s.checkGate(); err != nil {
		return nil, err
	}

	state := sel.State()
	payload, err := s.adapter.BuildPayload(state)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = s.api.UpdateBallStats(ctx, s.adapter.Sport(), s.matchID, payload)
	s.record(ctx, state.Action, payload, err, time.Since(start))

	if err != nil {
		s.logger.Printf("⚠️  %s update for %s failed: %v", state.Action, s.matchID, err)
		notify.Send(s.notifier, s.matchID, notify.LevelError, matchscore.UserMessage(err))
		return nil, err
	}

	var (
		snap       Snapshot
		refreshErr error
	)
	if refreshErr = s.checkGate(); refreshErr != nil {
		// closed or completed while the update was out; nothing else may be sent
		s.logger.Printf("skipping refresh after %s for %s: %v", state.Action, s.matchID, refreshErr)
	} else {
		sel.ResetAfterSubmit()
		snap, refreshErr = s.refresher.FetchSnapshot(ctx)
		if refreshErr != nil {
			s.logger.Printf("⚠️  refresh after %s for %s failed: %v", state.Action, s.matchID, refreshErr)
		}
	}

	s.logger.Printf("✓ %s recorded for %s", state.Action, s.matchID)
	notify.Send(s.notifier, s.matchID, notify.LevelSuccess, "Score updated successfully")

	return &SubmitResult{
		Action:     state.Action,
		Payload:    payload,
		Snapshot:   snap,
		RefreshErr: refreshErr,
	}, nil
}

func (s *Submitter) checkGate() error {
	if s.gate == nil {
		return nil
	}
	return s.gate()
}

func (s *Submitter) record(ctx context.Context, action Action, payload matchscore.Payload, err error, latency time.Duration) {
	if s.journal == nil {
		return
	}
	ev := ScoreEvent{
		MatchID:   s.matchID,
		Sport:     s.adapter.Sport(),
		SessionID: s.sessionID,
		Action:    action,
		Payload:   payload,
		Succeeded: err == nil,
		Latency:   latency,
		At:        time.Now(),
	}
	if err != nil {
		ev.Error = matchscore.UserMessage(err)
	}
	if jerr := s.journal.RecordScoreEvent(context.WithoutCancel(ctx), ev); jerr != nil {
		s.logger.Printf("⚠️  journal write failed for %s: %v", s.matchID, jerr)
	}
}
