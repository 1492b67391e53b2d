package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/scoredesk/internal/matchscore"
)

type sessionHarness struct {
	api     *fakeAPI
	clock   *manualClock
	nav     *recordingNavigator
	journal *memoryJournal
}

func newSessionHarness(match matchscore.Match) *sessionHarness {
	return &sessionHarness{
		api:     newFakeAPI(match),
		clock:   newManualClock(),
		nav:     &recordingNavigator{},
		journal: &memoryJournal{},
	}
}

func (h *sessionHarness) open(t *testing.T, sport matchscore.Sport, matchID string, hooks ...func(Snapshot)) *Session {
	t.Helper()
	s, err := Open(context.Background(), sport, matchID, Deps{
		API:           h.api,
		Navigator:     h.nav,
		Journal:       h.journal,
		Clock:         h.clock,
		PollInterval:  5 * time.Second,
		Logger:        quietLogger,
		SnapshotHooks: hooks,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSession_LiveMatchPollsUntilClosed(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportFootball, "f1")

	assert.True(t, s.Polling())
	assert.Equal(t, SurfaceFootballLive, s.Surface())
	require.Eventually(t, func() bool { return h.api.fetches() >= 2 }, time.Second, time.Millisecond)

	s.Close()
	assert.False(t, s.Polling())
	fetched := h.api.fetches()

	h.clock.Tick()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, fetched, h.api.fetches())

	assert.ErrorIs(t, s.SetPlayer("s7"), ErrSessionClosed)
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_CloseDuringSubmitSendsNoRefresh(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportFootball, "f1")
	require.Eventually(t, func() bool { return h.api.fetches() >= 1 }, time.Second, time.Millisecond)

	h.api.mu.Lock()
	h.api.updateGate = make(chan struct{})
	h.api.updateStarted = make(chan struct{}, 1)
	h.api.mu.Unlock()

	require.NoError(t, s.SetPlayer("s7"))
	require.NoError(t, s.SetAction(FootballGoal))

	type outcome struct {
		result *SubmitResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.Submit(context.Background())
		done <- outcome{result, err}
	}()
	<-h.api.updateStarted

	s.Close()
	fetched := h.api.fetches()
	close(h.api.updateGate)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.ErrorIs(t, out.result.RefreshErr, ErrSessionClosed)
	case <-time.After(time.Second):
		t.Fatal("submission never finished")
	}
	assert.Equal(t, fetched, h.api.fetches())
	assert.Equal(t, 1, h.api.updateCount())
}

func TestSession_UpcomingMatchDoesNotPoll(t *testing.T) {
	h := newSessionHarness(cricketMatch(matchscore.StatusUpcoming))
	s := h.open(t, matchscore.SportCricket, "m1")

	assert.False(t, s.Polling())
	assert.Equal(t, SurfacePreLive, s.Surface())
	assert.Equal(t, 1, h.api.fetches())
}

func TestSession_StartCricketMatch(t *testing.T) {
	h := newSessionHarness(cricketMatch(matchscore.StatusUpcoming))
	s := h.open(t, matchscore.SportCricket, "m1")

	err := s.StartMatch(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrMissingToss))
	assert.Equal(t, 0, h.api.statusCount())

	require.NoError(t, s.StartMatch(context.Background(), &TossDecision{WinnerTeamID: "Hawks", Choice: TossBatting}))

	params := h.api.statusCalls[0]
	assert.Equal(t, "t2", params.Get("toosewon"))
	assert.Equal(t, "true", params.Get("chooseBatting"))
	assert.Equal(t, "false", params.Get("chooseBowling"))

	assert.Equal(t, matchscore.StatusLive, s.Status())
	assert.True(t, s.Polling())
	assert.Equal(t, SurfaceCricketLive, s.Surface())
	to, _ := h.nav.last()
	assert.Equal(t, SurfaceCricketLive, to)

	view := s.View()
	require.NotNil(t, view.Toss)
	assert.Equal(t, "t2", view.Toss.WinnerTeamID)
	assert.Equal(t, "/admin/matchscoremaintain/Cricket_Edit/m1", view.SurfacePath)
}

func TestSession_CricketDelivery(t *testing.T) {
	h := newSessionHarness(cricketMatch(matchscore.StatusLive))
	cricketRosters(h.api)
	s := h.open(t, matchscore.SportCricket, "m1")

	err := s.SetPlayer("b1")
	assert.True(t, errors.Is(err, ErrMissingTeam))

	require.NoError(t, s.SelectBattingTeam(context.Background(), "falcons"))
	view := s.View()
	assert.Equal(t, "t1", view.BattingTeamID)
	assert.Equal(t, "t2", view.BowlingTeamID)
	assert.Len(t, s.Players(), 2)
	assert.Len(t, s.Bowlers(), 2)

	assert.True(t, errors.Is(s.SetPlayer("w1"), ErrInvalidPlayer))
	assert.True(t, errors.Is(s.SetBowler("b2"), ErrInvalidPlayer))

	require.NoError(t, s.SetPlayer("b1"))
	require.NoError(t, s.SetBowler("w1"))
	require.NoError(t, s.SetAction(CricketFour))
	assert.True(t, s.View().Submittable)

	before := h.api.fetches()
	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, matchscore.Payload{"batsmanId": "b1", "bowlerId": "w1", "fours": true}, h.api.lastUpdate())
	assert.Greater(t, h.api.fetches(), before)

	sel := s.Selection()
	assert.Equal(t, "b1", sel.PlayerID)
	assert.Equal(t, "w1", sel.Fields[FieldBowler])
	assert.Empty(t, sel.Action)
}

func TestSession_SwitchingBattingTeamClearsPlayers(t *testing.T) {
	h := newSessionHarness(cricketMatch(matchscore.StatusLive))
	cricketRosters(h.api)
	s := h.open(t, matchscore.SportCricket, "m1")

	require.NoError(t, s.SelectBattingTeam(context.Background(), "t1"))
	require.NoError(t, s.SetPlayer("b1"))
	require.NoError(t, s.SetBowler("w1"))

	require.NoError(t, s.SelectBattingTeam(context.Background(), "t2"))
	sel := s.Selection()
	assert.Empty(t, sel.PlayerID)
	_, hasBowler := sel.Fields[FieldBowler]
	assert.False(t, hasBowler)

	assert.True(t, errors.Is(s.SelectBattingTeam(context.Background(), "Eagles"), ErrInvalidField))
}

func TestSession_RosterFailureKeepsPreviousTeams(t *testing.T) {
	h := newSessionHarness(cricketMatch(matchscore.StatusLive))
	cricketRosters(h.api)
	s := h.open(t, matchscore.SportCricket, "m1")
	require.NoError(t, s.SelectBattingTeam(context.Background(), "t1"))

	delete(h.api.teams, "t1")
	err := s.SelectBattingTeam(context.Background(), "t2")

	assert.ErrorIs(t, err, matchscore.ErrNotFound)
	assert.Equal(t, "t1", s.View().BattingTeamID)
}

func TestSession_CompleteStopsPollingAndBlocksScoring(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportFootball, "f1")

	require.NoError(t, s.SetPlayer("s7"))
	require.NoError(t, s.SetAction(FootballGoal))
	require.NoError(t, s.CompleteMatch(context.Background()))

	assert.False(t, s.Polling())
	assert.Equal(t, SurfaceMatchList, s.Surface())
	assert.Empty(t, s.Selection().PlayerID)

	require.NoError(t, s.SetPlayer("s7"))
	require.NoError(t, s.SetAction(FootballGoal))
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrMatchCompleted)
	assert.Equal(t, 0, h.api.updateCount())
}

func TestSession_CompletedElsewhereStopsPolling(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportFootball, "f1")
	require.Eventually(t, func() bool { return h.api.fetches() >= 2 }, time.Second, time.Millisecond)

	h.api.setStatus(matchscore.StatusCompleted)
	h.clock.Tick()

	require.Eventually(t, func() bool { return !s.Polling() }, time.Second, time.Millisecond)
	assert.Equal(t, matchscore.StatusCompleted, s.Status())
	assert.Equal(t, SurfaceMatchList, s.Surface())
}

func TestSession_FootballPlayerMustBeInMatch(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportFootball, "f1")

	assert.True(t, errors.Is(s.SetPlayer("p99"), ErrInvalidPlayer))
	require.NoError(t, s.SetPlayer("s9"))
	assert.ErrorIs(t, s.SelectBattingTeam(context.Background(), "t1"), ErrUnsupported)
	assert.Len(t, s.Players(), 2)
}

func TestSession_FootballScoresByStatEntry(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportFootball, "f1")

	assert.Equal(t, []matchscore.Player{{ID: "s7", Name: "Ines"}, {ID: "s9", Name: "Tomas"}}, s.Players())
	assert.True(t, errors.Is(s.SetPlayer("p7"), ErrInvalidPlayer))

	require.NoError(t, s.SetPlayer("s7"))
	require.NoError(t, s.SetAction(FootballGoal))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, matchscore.Payload{"player": "s7", "eventType": "goal"}, h.api.lastUpdate())
}

func TestSession_BadmintonScoresByPlayer(t *testing.T) {
	h := newSessionHarness(badmintonMatch(matchscore.StatusLive))
	s := h.open(t, matchscore.SportBadminton, "b1")

	assert.Equal(t, []matchscore.Player{{ID: "p3", Name: "Lin"}, {ID: "p4", Name: "Mads"}}, s.Players())
	assert.True(t, errors.Is(s.SetPlayer("s3"), ErrInvalidPlayer))

	require.NoError(t, s.SetPlayer("p3"))
	require.NoError(t, s.SetAction(BadmintonSmash))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p3", h.api.lastUpdate()["playerId"])
}

func TestSession_HooksSeeFirstSnapshot(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusUpcoming))
	var mu sync.Mutex
	var seqs []uint64
	h.open(t, matchscore.SportFootball, "f1", func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, s.Seq)
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1}, seqs)
}

func TestSession_OpenFailsWithoutSnapshot(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusLive))
	h.api.fetchErr = &matchscore.APIError{Kind: matchscore.KindNotFound, Op: "fetch match", StatusCode: 404, Message: "Match not found"}

	_, err := Open(context.Background(), matchscore.SportFootball, "f1", Deps{API: h.api, Clock: h.clock, Logger: quietLogger})

	assert.ErrorIs(t, err, matchscore.ErrNotFound)
}

func TestSession_TouchTracksActivity(t *testing.T) {
	h := newSessionHarness(footballMatch(matchscore.StatusUpcoming))
	s := h.open(t, matchscore.SportFootball, "f1")
	opened := s.LastActive()

	h.clock.Advance(time.Minute)
	s.ClearAction()

	assert.Equal(t, opened.Add(time.Minute), s.LastActive())
}
