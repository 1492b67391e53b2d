package scoring

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
)

// TossChoice is what the toss winner elected to do.
type TossChoice string

const (
	TossBatting TossChoice = "batting"
	TossBowling TossChoice = "bowling"
)

// ParseTossChoice accepts "batting"/"bowling" in any casing.
func ParseTossChoice(s string) (TossChoice, error) {
	switch TossChoice(strings.ToLower(strings.TrimSpace(s))) {
	case TossBatting:
		return TossBatting, nil
	case TossBowling:
		return TossBowling, nil
	}
	return "", invalid(ErrInvalidField, "choice", "", "toss choice must be batting or bowling")
}

// TossDecision is required before a cricket match may go live.
type TossDecision struct {
	WinnerTeamID string     `json:"toss_winner_team_id"`
	Choice       TossChoice `json:"choice"`
}

// LifecycleConfig wires a Lifecycle.
type LifecycleConfig struct {
	SessionID string
	Navigator Navigator
	Notifier  notify.Notifier
	Journal   Journal
	Logger    *log.Logger
	// OnLive runs after a successful upcoming -> live transition.
	OnLive func()
	// OnCompleted runs after a successful live -> completed transition.
	OnCompleted func()
}

// Lifecycle owns the upcoming -> live -> completed progression of one match.
// Status only moves forward.
type Lifecycle struct {
	api       StatusUpdater
	adapter   SportAdapter
	matchID   string
	sessionID string
	team1ID   string
	team2ID   string
	navigator Navigator
	notifier  notify.Notifier
	journal   Journal
	logger    *log.Logger
	onLive    func()
	onDone    func()

	mu     sync.Mutex
	status matchscore.Status
	toss   *TossDecision

	busy atomic.Bool
}

// NewLifecycle starts tracking match at its current status.
func NewLifecycle(api StatusUpdater, adapter SportAdapter, match *matchscore.Match, cfg LifecycleConfig) *Lifecycle {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[lifecycle] ", log.LstdFlags)
	}
	return &Lifecycle{
		api:       api,
		adapter:   adapter,
		matchID:   match.ID,
		sessionID: cfg.SessionID,
		team1ID:   match.Team1.ID,
		team2ID:   match.Team2.ID,
		navigator: cfg.Navigator,
		notifier:  cfg.Notifier,
		journal:   cfg.Journal,
		logger:    cfg.Logger,
		onLive:    cfg.OnLive,
		onDone:    cfg.OnCompleted,
		status:    match.Status.Normalize(),
	}
}

// Status returns the furthest status observed.
func (l *Lifecycle) Status() matchscore.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Observe folds a status seen in a snapshot into the lifecycle. Backward
// moves are ignored. It reports whether the status advanced.
func (l *Lifecycle) Observe(status matchscore.Status) bool {
	return l.advance(status.Normalize())
}

func (l *Lifecycle) advance(to matchscore.Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if to.Rank() <= l.status.Rank() {
		return false
	}
	l.status = to
	return true
}

// EnsureEditable returns nil only while the match is live.
func (l *Lifecycle) EnsureEditable() error {
	switch l.Status() {
	case matchscore.StatusLive:
		return nil
	case matchscore.StatusCompleted:
		return ErrMatchCompleted
	default:
		return ErrMatchNotLive
	}
}

// SetToss records the toss. Only cricket has one.
func (l *Lifecycle) SetToss(d TossDecision) error {
	if l.adapter.Sport() != matchscore.SportCricket {
		return ErrUnsupported
	}
	if d.WinnerTeamID == "" {
		return invalid(ErrMissingToss, "toss_winner_team_id", "", "Please select toss winner")
	}
	if d.WinnerTeamID != l.team1ID && d.WinnerTeamID != l.team2ID {
		return invalid(ErrInvalidField, "toss_winner_team_id", "", "toss winner must be one of the two teams")
	}
	choice, err := ParseTossChoice(string(d.Choice))
	if err != nil {
		return err
	}
	d.Choice = choice

	l.mu.Lock()
	defer l.mu.Unlock()
	l.toss = &d
	return nil
}

// Toss returns the recorded toss.
func (l *Lifecycle) Toss() (TossDecision, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.toss == nil {
		return TossDecision{}, false
	}
	return *l.toss, true
}

// StartMatch performs upcoming -> live. Cricket needs a toss first; without
// one a ValidationError is returned and nothing is sent.
func (l *Lifecycle) StartMatch(ctx context.Context) error {
	switch l.Status() {
	case matchscore.StatusUpcoming:
	case matchscore.StatusCompleted:
		return ErrMatchCompleted
	default:
		return ErrIllegalTransition
	}

	params := url.Values{}
	params.Set("status", string(matchscore.StatusLive))

	toss, hasToss := l.Toss()
	if l.adapter.Sport() == matchscore.SportCricket {
		if !hasToss {
			return invalid(ErrMissingToss, "toss_winner_team_id", "", "Please select toss winner")
		}
		params.Set("toosewon", toss.WinnerTeamID)
		params.Set("chooseBatting", strconv.FormatBool(toss.Choice == TossBatting))
		params.Set("chooseBowling", strconv.FormatBool(toss.Choice == TossBowling))
	}

	if err := l.transition(ctx, matchscore.StatusUpcoming, matchscore.StatusLive, params, toss); err != nil {
		return err
	}

	notify.Send(l.notifier, l.matchID, notify.LevelSuccess, "Match status updated successfully")
	if l.onLive != nil {
		l.onLive()
	}
	l.navigate(l.adapter.LiveSurface())
	return nil
}

// CompleteMatch performs live -> completed. On success polling stops and the
// admin is sent back to the match list; on failure editing stays possible.
func (l *Lifecycle) CompleteMatch(ctx context.Context) error {
	switch l.Status() {
	case matchscore.StatusLive:
	case matchscore.StatusCompleted:
		return ErrMatchCompleted
	default:
		return ErrIllegalTransition
	}

	params := url.Values{}
	params.Set("status", string(matchscore.StatusCompleted))

	if err := l.transition(ctx, matchscore.StatusLive, matchscore.StatusCompleted, params, TossDecision{}); err != nil {
		return err
	}

	if l.onDone != nil {
		l.onDone()
	}
	notify.Send(l.notifier, l.matchID, notify.LevelSuccess, "Match completed successfully")
	l.navigate(SurfaceMatchList)
	return nil
}

func (l *Lifecycle) transition(ctx context.Context, from, to matchscore.Status, params url.Values, toss TossDecision) error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrTransitionInFlight
	}
	defer l.busy.Store(false)

	err := l.api.UpdateStatus(ctx, l.adapter.Sport(), l.matchID, params)
	l.record(ctx, from, to, toss, err)
	if err != nil {
		l.logger.Printf("⚠️  %s -> %s for %s failed: %v", from, to, l.matchID, err)
		notify.Send(l.notifier, l.matchID, notify.LevelError, matchscore.UserMessage(err))
		return err
	}

	l.advance(to)
	l.logger.Printf("✓ match %s is now %s", l.matchID, to)
	return nil
}

func (l *Lifecycle) navigate(to Surface) {
	if l.navigator != nil {
		l.navigator.Navigate(l.matchID, to)
	}
}

func (l *Lifecycle) record(ctx context.Context, from, to matchscore.Status, toss TossDecision, err error) {
	if l.journal == nil {
		return
	}
	tr := TransitionRecord{
		MatchID:    l.matchID,
		Sport:      l.adapter.Sport(),
		SessionID:  l.sessionID,
		From:       from,
		To:         to,
		TossWinner: toss.WinnerTeamID,
		TossChoice: toss.Choice,
		Succeeded:  err == nil,
		At:         time.Now(),
	}
	if err != nil {
		tr.Error = matchscore.UserMessage(err)
	}
	if jerr := l.journal.RecordTransition(context.WithoutCancel(ctx), tr); jerr != nil {
		l.logger.Printf("⚠️  journal write failed for %s: %v", l.matchID, jerr)
	}
}
