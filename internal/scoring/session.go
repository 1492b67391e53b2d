package scoring

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
)

// FieldBattingTeam names the batting-team input in validation errors.
const FieldBattingTeam Field = "battingTeam"

// Deps are the collaborators a Session is built from.
type Deps struct {
	API          MatchAPI
	Notifier     notify.Notifier
	Navigator    Navigator
	Journal      Journal
	Clock        Clock
	PollInterval time.Duration
	Logger       *log.Logger
	// SnapshotHooks receive every applied snapshot, including the first one.
	SnapshotHooks []func(Snapshot)
}

// View is a point-in-time rendering of a session.
type View struct {
	SessionID     string         `json:"session_id"`
	MatchID       string         `json:"match_id"`
	Sport         string         `json:"sport"`
	Status        string         `json:"status"`
	Surface       Surface        `json:"surface"`
	SurfacePath   string         `json:"surface_path"`
	Scoreline     string         `json:"scoreline,omitempty"`
	Snapshot      *Snapshot      `json:"snapshot,omitempty"`
	Selection     SelectionState `json:"selection"`
	Submittable   bool           `json:"submittable"`
	Actions       []ActionSpec   `json:"actions"`
	BattingTeamID string         `json:"batting_team_id,omitempty"`
	BowlingTeamID string         `json:"bowling_team_id,omitempty"`
	Toss          *TossDecision  `json:"toss,omitempty"`
	Polling       bool           `json:"polling"`
	InFlight      bool           `json:"in_flight"`
}

// Session is the controller for one open match-edit view. It owns the
// poller, the selection, the submitter and the lifecycle of that match.
type Session struct {
	id        string
	sport     matchscore.Sport
	matchID   string
	api       MatchAPI
	adapter   SportAdapter
	clock     Clock
	notifier  notify.Notifier
	navigator Navigator
	logger    *log.Logger

	poller    *SnapshotPoller
	selection *Selection
	submitter *Submitter
	lifecycle *Lifecycle

	runCtx    context.Context
	runCancel context.CancelFunc

	mu            sync.Mutex
	surface       Surface
	battingTeamID string
	bowlingTeamID string
	battingRoster *matchscore.Team
	bowlingRoster *matchscore.Team
	closed        bool
	lastActive    time.Time
}

// Open loads the match and starts a session on it. Polling starts right away
// when the match is live; an upcoming match starts polling once it goes live.
func Open(ctx context.Context, sport matchscore.Sport, matchID string, deps Deps) (*Session, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("open session: no match api")
	}
	adapter, err := AdapterFor(sport)
	if err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.Writer(), "[session] ", log.LstdFlags)
	}

	s := &Session{
		id:        uuid.NewString(),
		sport:     sport,
		matchID:   matchID,
		api:       deps.API,
		adapter:   adapter,
		clock:     deps.Clock,
		notifier:  deps.Notifier,
		navigator: deps.Navigator,
		logger:    deps.Logger,
		selection: NewSelection(adapter),
	}
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	s.poller = NewSnapshotPoller(deps.API, sport, matchID, PollerConfig{
		Interval: deps.PollInterval,
		Clock:    deps.Clock,
		Notifier: deps.Notifier,
		Logger:   deps.Logger,
	})
	for _, hook := range deps.SnapshotHooks {
		if hook != nil {
			s.poller.OnSnapshot(hook)
		}
	}

	snap, err := s.poller.FetchSnapshot(ctx)
	if err != nil {
		s.runCancel()
		return nil, fmt.Errorf("open %s match %s: %w", sport, matchID, err)
	}

	s.lifecycle = NewLifecycle(deps.API, adapter, snap.Match, LifecycleConfig{
		SessionID:   s.id,
		Navigator:   NavigatorFunc(s.navigate),
		Notifier:    deps.Notifier,
		Journal:     deps.Journal,
		Logger:      deps.Logger,
		OnLive:      s.startPolling,
		OnCompleted: s.stopEditing,
	})
	s.submitter = NewSubmitter(deps.API, adapter, matchID, s.poller, SubmitterConfig{
		SessionID: s.id,
		Gate:      s.editable,
		Notifier:  deps.Notifier,
		Journal:   deps.Journal,
		Logger:    deps.Logger,
	})
	s.surface = SurfaceFor(snap.Match)
	s.lastActive = s.clock.Now()
	s.poller.OnSnapshot(s.observe)

	if s.lifecycle.Status() == matchscore.StatusLive {
		s.startPolling()
	}

	s.logger.Printf("✓ opened session %s on %s match %s (%s)", s.id, sport, matchID, s.lifecycle.Status())
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// MatchID returns the match being edited.
func (s *Session) MatchID() string { return s.matchID }

// Sport returns the match's sport.
func (s *Session) Sport() matchscore.Sport { return s.sport }

// Adapter returns the sport adapter in use.
func (s *Session) Adapter() SportAdapter { return s.adapter }

// Status returns the lifecycle status.
func (s *Session) Status() matchscore.Status { return s.lifecycle.Status() }

// Snapshot returns the snapshot on display.
func (s *Session) Snapshot() (Snapshot, bool) { return s.poller.Current() }

// Selection returns a copy of the in-progress selection.
func (s *Session) Selection() SelectionState { return s.selection.State() }

// Polling reports whether the background refresh timer is running.
func (s *Session) Polling() bool { return s.poller.Running() }

// InFlight reports whether a score update is outstanding.
func (s *Session) InFlight() bool { return s.submitter.InFlight() }

// Surface returns the screen the admin is on.
func (s *Session) Surface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Touch marks the session as in use.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.clock.Now()
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// View renders the session.
func (s *Session) View() View {
	status := s.lifecycle.Status()
	s.mu.Lock()
	v := View{
		SessionID:     s.id,
		MatchID:       s.matchID,
		Sport:         string(s.sport),
		Status:        string(status),
		Surface:       s.surface,
		SurfacePath:   s.surface.Path(s.matchID),
		BattingTeamID: s.battingTeamID,
		BowlingTeamID: s.bowlingTeamID,
	}
	s.mu.Unlock()

	if snap, ok := s.poller.Current(); ok {
		v.Snapshot = &snap
		if snap.Match != nil {
			v.Scoreline = snap.Match.Scoreline()
		}
	}
	if toss, ok := s.lifecycle.Toss(); ok {
		v.Toss = &toss
	}
	v.Selection = s.selection.State()
	v.Submittable = s.selection.IsSubmittable()
	v.Actions = s.adapter.ListActions()
	v.Polling = s.poller.Running()
	v.InFlight = s.submitter.InFlight()
	return v
}

// SelectBattingTeam chooses the batting side of a cricket match by team id
// or name. Both rosters are fetched; the choice only takes effect if both
// loads succeed. Batsman and bowler are cleared.
func (s *Session) SelectBattingTeam(ctx context.Context, team string) error {
	if err := s.open(); err != nil {
		return err
	}
	if s.sport != matchscore.SportCricket {
		return ErrUnsupported
	}
	snap, ok := s.poller.Current()
	if !ok || snap.Match == nil {
		return ErrMatchNotLive
	}
	battingID, ok := snap.Match.ResolveTeam(team)
	if !ok {
		return invalid(ErrInvalidField, FieldBattingTeam, "", "%q is not playing in this match", team)
	}
	bowlingID, _ := snap.Match.Opponent(battingID)

	batting, err := s.api.FetchTeam(ctx, battingID)
	if err != nil {
		notify.Send(s.notifier, s.matchID, notify.LevelError, matchscore.UserMessage(err))
		return fmt.Errorf("load batting roster: %w", err)
	}
	bowling, err := s.api.FetchTeam(ctx, bowlingID)
	if err != nil {
		notify.Send(s.notifier, s.matchID, notify.LevelError, matchscore.UserMessage(err))
		return fmt.Errorf("load bowling roster: %w", err)
	}

	s.mu.Lock()
	s.battingTeamID, s.bowlingTeamID = battingID, bowlingID
	s.battingRoster, s.bowlingRoster = batting, bowling
	s.lastActive = s.clock.Now()
	s.mu.Unlock()

	s.selection.ClearPlayer()
	s.selection.ClearAuxiliary(FieldBowler)
	s.logger.Printf("match %s: %s batting, %s bowling", s.matchID, batting.Name, bowling.Name)
	return nil
}

// Players lists who may be chosen as the acting player: the batting roster
// for cricket, the match's player stats otherwise.
func (s *Session) Players() []matchscore.Player {
	if s.sport == matchscore.SportCricket {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.battingRoster == nil {
			return nil
		}
		return append([]matchscore.Player(nil), s.battingRoster.Players...)
	}

	snap, ok := s.poller.Current()
	if !ok || snap.Match == nil {
		return nil
	}
	players := make([]matchscore.Player, 0, len(snap.Match.PlayerStats))
	for _, st := range snap.Match.PlayerStats {
		players = append(players, matchscore.Player{ID: s.adapter.PlayerKey(st), Name: st.PlayerName})
	}
	return players
}

// Bowlers lists the bowling roster of a cricket match.
func (s *Session) Bowlers() []matchscore.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bowlingRoster == nil {
		return nil
	}
	return append([]matchscore.Player(nil), s.bowlingRoster.Players...)
}

// SetPlayer selects the acting player.
func (s *Session) SetPlayer(playerID string) error {
	if err := s.open(); err != nil {
		return err
	}
	if err := s.checkPlayer(playerID); err != nil {
		return err
	}
	s.Touch()
	s.selection.SetPlayer(playerID)
	return nil
}

func (s *Session) checkPlayer(playerID string) error {
	if playerID == "" {
		return invalid(ErrMissingPlayer, "", "", "Please select a player")
	}
	if s.sport == matchscore.SportCricket {
		s.mu.Lock()
		roster := s.battingRoster
		s.mu.Unlock()
		if roster == nil {
			return invalid(ErrMissingTeam, FieldBattingTeam, "", "Please select batting team")
		}
		if _, ok := roster.FindPlayer(playerID); !ok {
			return invalid(ErrInvalidPlayer, "", "", "%s is not in the batting lineup", playerID)
		}
		return nil
	}

	snap, ok := s.poller.Current()
	if !ok || snap.Match == nil || len(snap.Match.PlayerStats) == 0 {
		return nil
	}
	for _, st := range snap.Match.PlayerStats {
		if key := s.adapter.PlayerKey(st); key != "" && key == playerID {
			return nil
		}
	}
	return invalid(ErrInvalidPlayer, "", "", "%s is not playing in this match", playerID)
}

// SetBowler selects the bowler of a cricket delivery.
func (s *Session) SetBowler(playerID string) error {
	return s.SetAuxiliary(FieldBowler, playerID)
}

// SetAction selects the action.
func (s *Session) SetAction(action Action) error {
	if err := s.open(); err != nil {
		return err
	}
	s.Touch()
	return s.selection.SetAction(action)
}

// ClearAction unsets the action.
func (s *Session) ClearAction() {
	s.Touch()
	s.selection.ClearAction()
}

// SetAuxiliary sets a sport-specific input such as the out type.
func (s *Session) SetAuxiliary(field Field, value interface{}) error {
	if err := s.open(); err != nil {
		return err
	}
	if field == FieldBowler && s.sport == matchscore.SportCricket {
		id, _ := value.(string)
		s.mu.Lock()
		roster := s.bowlingRoster
		s.mu.Unlock()
		if roster == nil {
			return invalid(ErrMissingTeam, FieldBattingTeam, "", "Please select batting team")
		}
		if _, ok := roster.FindPlayer(id); !ok {
			return invalid(ErrInvalidPlayer, FieldBowler, "", "%s is not in the bowling lineup", id)
		}
	}
	s.Touch()
	return s.selection.SetAuxiliary(field, value)
}

// ClearAuxiliary unsets a sport-specific input.
func (s *Session) ClearAuxiliary(field Field) {
	s.Touch()
	s.selection.ClearAuxiliary(field)
}

// Submit sends the current selection as one score update.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	s.Touch()
	return s.submitter.Submit(ctx, s.selection)
}

// SetToss records the cricket toss.
func (s *Session) SetToss(d TossDecision) error {
	if err := s.open(); err != nil {
		return err
	}
	if match := s.currentMatch(); match != nil {
		if id, ok := match.ResolveTeam(d.WinnerTeamID); ok {
			d.WinnerTeamID = id
		}
	}
	s.Touch()
	return s.lifecycle.SetToss(d)
}

func (s *Session) currentMatch() *matchscore.Match {
	snap, ok := s.poller.Current()
	if !ok {
		return nil
	}
	return snap.Match
}

// StartMatch takes the match live. A non-nil toss is recorded first.
func (s *Session) StartMatch(ctx context.Context, toss *TossDecision) error {
	if err := s.open(); err != nil {
		return err
	}
	if toss != nil {
		if err := s.SetToss(*toss); err != nil {
			return err
		}
	}
	s.Touch()
	return s.lifecycle.StartMatch(ctx)
}

// CompleteMatch ends the match. Polling stops on success.
func (s *Session) CompleteMatch(ctx context.Context) error {
	if err := s.open(); err != nil {
		return err
	}
	s.Touch()
	return s.lifecycle.CompleteMatch(ctx)
}

// Close tears the session down; no request is issued afterwards. Calling
// Close more than once is safe.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.runCancel()
	s.poller.Close()
	s.logger.Printf("closed session %s on match %s", s.id, s.matchID)
}

func (s *Session) open() error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) editable() error {
	if err := s.open(); err != nil {
		return err
	}
	return s.lifecycle.EnsureEditable()
}

func (s *Session) startPolling() {
	if s.Closed() {
		return
	}
	s.poller.Start(s.runCtx)
}

func (s *Session) stopEditing() {
	s.poller.Stop()
	s.selection.Reset()
}

func (s *Session) navigate(matchID string, to Surface) {
	s.mu.Lock()
	s.surface = to
	s.mu.Unlock()
	if s.navigator != nil {
		s.navigator.Navigate(matchID, to)
	}
}

// observe runs on the poller's delivery path, so it must never wait on the
// poller itself.
func (s *Session) observe(snap Snapshot) {
	if snap.Match == nil || !s.lifecycle.Observe(snap.Match.Status) {
		return
	}

	switch s.lifecycle.Status() {
	case matchscore.StatusLive:
		s.logger.Printf("match %s went live elsewhere", s.matchID)
		s.mu.Lock()
		if s.surface == SurfacePreLive {
			s.surface = s.adapter.LiveSurface()
		}
		s.mu.Unlock()
		s.startPolling()
	case matchscore.StatusCompleted:
		s.logger.Printf("match %s completed elsewhere, stopping refresh", s.matchID)
		s.mu.Lock()
		s.surface = SurfaceMatchList
		s.mu.Unlock()
		s.selection.Reset()
		go s.poller.Stop()
	}
}
