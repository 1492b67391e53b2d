package scoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
)

func newTestSubmitter(api *fakeAPI, adapter SportAdapter, ref Refresher, cfg SubmitterConfig) *Submitter {
	cfg.Logger = quietLogger
	return NewSubmitter(api, adapter, "m1", ref, cfg)
}

func readyCricketSelection(t *testing.T, action Action) *Selection {
	t.Helper()
	sel := NewSelection(CricketAdapter{})
	sel.SetPlayer("b1")
	require.NoError(t, sel.SetAuxiliary(FieldBowler, "w1"))
	require.NoError(t, sel.SetAction(action))
	return sel
}

func TestSubmit_SendsOneUpdateAndOneRefresh(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	ref := &fakeRefresher{}
	rec := newRecorder()
	journal := &memoryJournal{}
	sub := newTestSubmitter(api, CricketAdapter{}, ref, SubmitterConfig{Notifier: rec, Journal: journal, SessionID: "s1"})

	sel := readyCricketSelection(t, CricketFour)
	result, err := sub.Submit(context.Background(), sel)

	require.NoError(t, err)
	assert.Equal(t, 1, api.updateCount())
	assert.Equal(t, int32(1), ref.calls.Load())
	assert.Equal(t, matchscore.Payload{"batsmanId": "b1", "bowlerId": "w1", "fours": true}, api.lastUpdate())
	assert.Equal(t, CricketFour, result.Action)

	state := sel.State()
	assert.Empty(t, state.Action)
	assert.Equal(t, "b1", state.PlayerID)

	last, ok := rec.Last("m1")
	require.True(t, ok)
	assert.Equal(t, notify.LevelSuccess, last.Level)
	assert.Equal(t, "Score updated successfully", last.Message)

	require.Len(t, journal.events, 1)
	assert.True(t, journal.events[0].Succeeded)
	assert.Equal(t, "s1", journal.events[0].SessionID)
}

func TestSubmit_SecondCallWhileInFlightSendsNothing(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	api.updateGate = make(chan struct{})
	api.updateStarted = make(chan struct{}, 1)
	ref := &fakeRefresher{}
	sub := newTestSubmitter(api, CricketAdapter{}, ref, SubmitterConfig{})

	sel := readyCricketSelection(t, CricketSix)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Submit(context.Background(), sel)
		done <- err
	}()
	<-api.updateStarted
	assert.True(t, sub.InFlight())

	_, err := sub.Submit(context.Background(), sel)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, 1, api.updateCount())

	close(api.updateGate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first submission never finished")
	}
	assert.False(t, sub.InFlight())
	assert.Equal(t, 1, api.updateCount())
	assert.Equal(t, int32(1), ref.calls.Load())
}

func TestSubmit_FailureKeepsSelection(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	api.updateErr = serverError("Bowler cannot bowl consecutive overs")
	ref := &fakeRefresher{}
	rec := newRecorder()
	journal := &memoryJournal{}
	sub := newTestSubmitter(api, CricketAdapter{}, ref, SubmitterConfig{Notifier: rec, Journal: journal})

	sel := readyCricketSelection(t, CricketRun2)
	before := sel.State()

	_, err := sub.Submit(context.Background(), sel)

	require.Error(t, err)
	assert.True(t, errors.Is(err, matchscore.ErrServer))
	assert.Equal(t, before, sel.State())
	assert.Equal(t, int32(0), ref.calls.Load())
	assert.False(t, sub.InFlight())

	last, ok := rec.Last("m1")
	require.True(t, ok)
	assert.Equal(t, notify.LevelError, last.Level)
	assert.Equal(t, "Bowler cannot bowl consecutive overs", last.Message)

	require.Len(t, journal.events, 1)
	assert.False(t, journal.events[0].Succeeded)
	assert.Equal(t, "Bowler cannot bowl consecutive overs", journal.events[0].Error)
}

func TestSubmit_IncompleteSelectionNeverHitsTheNetwork(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	rec := newRecorder()
	sub := newTestSubmitter(api, CricketAdapter{}, &fakeRefresher{}, SubmitterConfig{Notifier: rec})

	sel := NewSelection(CricketAdapter{})
	sel.SetPlayer("b1")
	require.NoError(t, sel.SetAction(CricketRun1))

	_, err := sub.Submit(context.Background(), sel)

	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, api.updateCount())
	assert.Empty(t, rec.Recent("m1"))
	assert.False(t, sub.InFlight())
}

func TestSubmit_GateBlocks(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusCompleted))
	sub := newTestSubmitter(api, CricketAdapter{}, &fakeRefresher{}, SubmitterConfig{
		Gate: func() error { return ErrMatchCompleted },
	})

	_, err := sub.Submit(context.Background(), readyCricketSelection(t, CricketRun1))

	assert.ErrorIs(t, err, ErrMatchCompleted)
	assert.Equal(t, 0, api.updateCount())
}

// gateAfter passes the first n checks and blocks every later one.
func gateAfter(n int32, err error) func() error {
	var calls atomic.Int32
	return func() error {
		if calls.Add(1) > n {
			return err
		}
		return nil
	}
}

func TestSubmit_GateCheckedAgainOnceSlotIsTaken(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	ref := &fakeRefresher{}
	sub := newTestSubmitter(api, CricketAdapter{}, ref, SubmitterConfig{
		Gate: gateAfter(1, ErrMatchCompleted),
	})

	_, err := sub.Submit(context.Background(), readyCricketSelection(t, CricketRun1))

	assert.ErrorIs(t, err, ErrMatchCompleted)
	assert.Equal(t, 0, api.updateCount())
	assert.Equal(t, int32(0), ref.calls.Load())
	assert.False(t, sub.InFlight())
}

func TestSubmit_NoRefreshOnceGateCloses(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	ref := &fakeRefresher{}
	rec := newRecorder()
	sub := newTestSubmitter(api, CricketAdapter{}, ref, SubmitterConfig{
		Gate:     gateAfter(2, ErrSessionClosed),
		Notifier: rec,
	})

	result, err := sub.Submit(context.Background(), readyCricketSelection(t, CricketRun1))

	require.NoError(t, err)
	assert.Equal(t, 1, api.updateCount())
	assert.Equal(t, int32(0), ref.calls.Load())
	assert.ErrorIs(t, result.RefreshErr, ErrSessionClosed)

	last, ok := rec.Last("m1")
	require.True(t, ok)
	assert.Equal(t, notify.LevelSuccess, last.Level)
}

func TestSubmit_RefreshFailureStillSucceeds(t *testing.T) {
	api := newFakeAPI(cricketMatch(matchscore.StatusLive))
	ref := &fakeRefresher{err: errors.New("timeout")}
	sub := newTestSubmitter(api, CricketAdapter{}, ref, SubmitterConfig{})

	result, err := sub.Submit(context.Background(), readyCricketSelection(t, CricketWide))

	require.NoError(t, err)
	assert.Error(t, result.RefreshErr)
	assert.Equal(t, int32(1), ref.calls.Load())
}
