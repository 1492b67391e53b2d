package scoring

import (
	"context"
	"io"
	"log"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
)

var quietLogger = log.New(io.Discard, "", 0)

// fakeAPI is an in-memory backend. Status updates are applied to the stored
// match so later fetches observe them.
type fakeAPI struct {
	mu sync.Mutex

	match    matchscore.Match
	fetchErr error
	// fetchHook, when set, replaces the default fetch behaviour.
	fetchHook  func(ctx context.Context, call int) (*matchscore.Match, error)
	fetchCalls int

	updates   []matchscore.Payload
	updateErr error
	// updateGate blocks UpdateBallStats until closed.
	updateGate    chan struct{}
	updateStarted chan struct{}

	statusCalls []url.Values
	statusErr   error

	teams     map[string]*matchscore.Team
	teamErr   error
	teamCalls []string
}

func newFakeAPI(match matchscore.Match) *fakeAPI {
	return &fakeAPI{match: match, teams: map[string]*matchscore.Team{}}
}

func (f *fakeAPI) FetchMatch(ctx context.Context, sport matchscore.Sport, matchID string) (*matchscore.Match, error) {
	f.mu.Lock()
	f.fetchCalls++
	call := f.fetchCalls
	hook := f.fetchHook
	err := f.fetchErr
	m := f.match
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, call)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (f *fakeAPI) UpdateBallStats(ctx context.Context, sport matchscore.Sport, matchID string, payload matchscore.Payload) error {
	f.mu.Lock()
	gate := f.updateGate
	started := f.updateStarted
	f.updates = append(f.updates, payload)
	err := f.updateErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeAPI) UpdateStatus(ctx context.Context, sport matchscore.Sport, matchID string, params url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, params)
	if f.statusErr != nil {
		return f.statusErr
	}
	f.match.Status = matchscore.Status(params.Get("status"))
	return nil
}

func (f *fakeAPI) FetchTeam(ctx context.Context, teamID string) (*matchscore.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamCalls = append(f.teamCalls, teamID)
	if f.teamErr != nil {
		return nil, f.teamErr
	}
	team, ok := f.teams[teamID]
	if !ok {
		return nil, &matchscore.APIError{Kind: matchscore.KindNotFound, Op: "fetch team", StatusCode: 404, Message: "Team not found"}
	}
	return team, nil
}

func (f *fakeAPI) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeAPI) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeAPI) lastUpdate() matchscore.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

func (f *fakeAPI) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.statusCalls)
}

func (f *fakeAPI) setStatus(status matchscore.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match.Status = status
}

func serverError(msg string) error {
	return &matchscore.APIError{Kind: matchscore.KindServer, Op: "update", StatusCode: 500, Message: msg}
}

// manualClock hands out tickers that only fire when Tick is called.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick fires every live ticker once.
func (c *manualClock) Tick() {
	c.mu.Lock()
	tickers := append([]*manualTicker(nil), c.tickers...)
	now := c.now
	c.mu.Unlock()
	for _, t := range tickers {
		if t.stopped.Load() {
			continue
		}
		select {
		case t.ch <- now:
		default:
		}
	}
}

func (c *manualClock) liveTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped.Load() {
			n++
		}
	}
	return n
}

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// fakeRefresher counts forced refreshes.
type fakeRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *fakeRefresher) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	r.calls.Add(1)
	return Snapshot{Seq: uint64(r.calls.Load())}, r.err
}

// recordingNavigator captures navigations.
type recordingNavigator struct {
	mu    sync.Mutex
	moves []Surface
}

func (n *recordingNavigator) Navigate(matchID string, to Surface) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moves = append(n.moves, to)
}

func (n *recordingNavigator) last() (Surface, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.moves) == 0 {
		return "", false
	}
	return n.moves[len(n.moves)-1], true
}

// memoryJournal keeps journal records in memory.
type memoryJournal struct {
	mu          sync.Mutex
	events      []ScoreEvent
	transitions []TransitionRecord
}

func (j *memoryJournal) RecordScoreEvent(ctx context.Context, ev ScoreEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
	return nil
}

func (j *memoryJournal) RecordTransition(ctx context.Context, tr TransitionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, tr)
	return nil
}

func cricketMatch(status matchscore.Status) matchscore.Match {
	return matchscore.Match{
		ID:        "m1",
		Sport:     matchscore.SportCricket,
		Status:    status,
		Team1:     matchscore.TeamRef{ID: "t1", Name: "Falcons"},
		Team2:     matchscore.TeamRef{ID: "t2", Name: "Hawks"},
		Team1Name: "Falcons",
		Team2Name: "Hawks",
	}
}

func footballMatch(status matchscore.Status) matchscore.Match {
	return matchscore.Match{
		ID:     "f1",
		Sport:  matchscore.SportFootball,
		Status: status,
		Team1:  matchscore.TeamRef{ID: "t1", Name: "Rovers"},
		Team2:  matchscore.TeamRef{ID: "t2", Name: "United"},
		PlayerStats: []matchscore.PlayerStat{
			{ID: "s7", PlayerID: "p7", PlayerName: "Ines", TeamID: "t1"},
			{ID: "s9", PlayerID: "p9", PlayerName: "Tomas", TeamID: "t2"},
		},
	}
}

func badmintonMatch(status matchscore.Status) matchscore.Match {
	return matchscore.Match{
		ID:     "b1",
		Sport:  matchscore.SportBadminton,
		Status: status,
		Team1:  matchscore.TeamRef{ID: "t1", Name: "Shuttlers"},
		Team2:  matchscore.TeamRef{ID: "t2", Name: "Smashers"},
		PlayerStats: []matchscore.PlayerStat{
			{ID: "s3", PlayerID: "p3", PlayerName: "Lin", TeamID: "t1"},
			{ID: "s4", PlayerID: "p4", PlayerName: "Mads", TeamID: "t2"},
		},
	}
}

func cricketRosters(api *fakeAPI) {
	api.teams["t1"] = &matchscore.Team{ID: "t1", Name: "Falcons", Players: []matchscore.Player{
		{ID: "b1", Name: "Arjun Mehta"}, {ID: "b2", Name: "Rohan Das"},
	}}
	api.teams["t2"] = &matchscore.Team{ID: "t2", Name: "Hawks", Players: []matchscore.Player{
		{ID: "w1", Name: "Kabir Singh"}, {ID: "w2", Name: "Dev Patel"},
	}}
}

func newRecorder() *notify.Recorder { return notify.NewRecorder(20) }
