package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
	"github.com/fortuna/scoredesk/internal/store"
)

func newMockRepo(t *testing.T) (*JournalRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJournalRepository(store.NewDatabaseFromDB(db)), mock
}

func TestRecordScoreEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO score_events")).
		WithArgs("m1", "cricket", "s1", "four", sqlmock.AnyArg(), "success", nil, int64(120), at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordScoreEvent(context.Background(), scoring.ScoreEvent{
		MatchID:   "m1",
		Sport:     matchscore.SportCricket,
		SessionID: "s1",
		Action:    scoring.CricketFour,
		Payload:   matchscore.Payload{"batsmanId": "b1", "bowlerId": "w1", "fours": true},
		Succeeded: true,
		Latency:   120 * time.Millisecond,
		At:        at,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordScoreEvent_FailedAttemptKeepsMessage(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO score_events")).
		WithArgs("f1", "football", "", "goal", sqlmock.AnyArg(), "failed", "Player not found", int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := repo.RecordScoreEvent(context.Background(), scoring.ScoreEvent{
		MatchID: "f1",
		Sport:   matchscore.SportFootball,
		Action:  scoring.FootballGoal,
		Payload: matchscore.Payload{"player": "p7", "eventType": "goal"},
		Error:   "Player not found",
		At:      time.Now(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransition(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_transitions")).
		WithArgs("m1", "cricket", "s1", "upcoming", "live", "t2", "bowling", "success", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordTransition(context.Background(), scoring.TransitionRecord{
		MatchID:    "m1",
		Sport:      matchscore.SportCricket,
		SessionID:  "s1",
		From:       matchscore.StatusUpcoming,
		To:         matchscore.StatusLive,
		TossWinner: "t2",
		TossChoice: scoring.TossBowling,
		Succeeded:  true,
		At:         time.Now(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransition_DatabaseError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO status_transitions")).
		WillReturnError(errors.New("connection reset"))

	err := repo.RecordTransition(context.Background(), scoring.TransitionRecord{MatchID: "m1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "inserting status transition")
}

func TestMatchJournal(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 3, 1, 12, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM score_events")).
		WithArgs("m1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "match_id", "sport", "session_id", "action", "payload", "status", "error", "latency_ms", "created_at",
		}).
			AddRow(2, "m1", "cricket", "s1", "wicket", []byte(`{"wicket":true}`), "failed", "Bowler is required", 40, created).
			AddRow(1, "m1", "cricket", "s1", "run1", []byte(`{"runs":1}`), "success", nil, 35, created.Add(-time.Minute)))

	mock.ExpectQuery(regexp.QuoteMeta("FROM status_transitions")).
		WithArgs("m1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "match_id", "sport", "session_id", "from_status", "to_status", "toss_winner", "toss_choice", "status", "error", "created_at",
		}).
			AddRow(1, "m1", "cricket", "s1", "upcoming", "live", "t1", "batting", "success", nil, created.Add(-time.Hour)))

	journal, err := repo.MatchJournal(context.Background(), "m1", 20)

	require.NoError(t, err)
	require.Len(t, journal.ScoreEvents, 2)
	assert.Equal(t, "wicket", journal.ScoreEvents[0].Action)
	require.NotNil(t, journal.ScoreEvents[0].Error)
	assert.Equal(t, "Bowler is required", *journal.ScoreEvents[0].Error)
	assert.Nil(t, journal.ScoreEvents[1].Error)
	assert.JSONEq(t, `{"runs":1}`, string(journal.ScoreEvents[1].Payload))

	require.Len(t, journal.Transitions, 1)
	require.NotNil(t, journal.Transitions[0].TossWinner)
	assert.Equal(t, "t1", *journal.Transitions[0].TossWinner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListScoreEvents_DefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM score_events")).
		WithArgs("m9", DefaultListLimit).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "match_id", "sport", "session_id", "action", "payload", "status", "error", "latency_ms", "created_at",
		}))

	events, err := repo.ListScoreEvents(context.Background(), "m9", 0)

	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
