package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_KeepsNewestWithinLimit(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		Send(r, "m1", LevelInfo, fmt.Sprintf("msg %d", i))
	}
	Send(r, "m2", LevelError, "other match")

	recent := r.Recent("m1")
	require.Len(t, recent, 3)
	assert.Equal(t, "msg 2", recent[0].Message)
	assert.Equal(t, "msg 4", recent[2].Message)

	last, ok := r.Last("m2")
	require.True(t, ok)
	assert.Equal(t, LevelError, last.Level)

	r.Forget("m1")
	assert.Empty(t, r.Recent("m1"))
}

func TestMulti_DeliversToEverySink(t *testing.T) {
	a, b := NewRecorder(10), NewRecorder(10)
	Send(Multi{a, nil, b}, "m1", LevelSuccess, "Score updated successfully")

	assert.Len(t, a.Recent("m1"), 1)
	assert.Len(t, b.Recent("m1"), 1)
}

func TestSend_NilNotifierIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { Send(nil, "m1", LevelInfo, "ignored") })
}

type fakeWebhook struct {
	mu    sync.Mutex
	calls []*discordgo.WebhookParams
	done  chan struct{}
}

func (f *fakeWebhook) WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, data)
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil, nil
}

func TestDiscord_PostsSuccessAndErrorButNotInfo(t *testing.T) {
	hook := &fakeWebhook{done: make(chan struct{}, 4)}
	d := newDiscord(hook, "id", "tok", DiscordOptions{Logger: NewLog(nil).logger})

	d.Notify(Notification{MatchID: "m1", Level: LevelInfo, Message: "quiet"})
	d.Notify(Notification{MatchID: "m1", Level: LevelError, Message: "Innings already closed"})

	select {
	case <-hook.done:
	case <-time.After(time.Second):
		t.Fatal("webhook was not called")
	}

	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.calls, 1)
	assert.Contains(t, hook.calls[0].Content, "Innings already closed")
	assert.Contains(t, hook.calls[0].Content, ":warning:")
}

func waitForPosts(t *testing.T, hook *fakeWebhook, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-hook.done:
		case <-time.After(time.Second):
			t.Fatalf("webhook called %d times, want %d", i, n)
		}
	}
}

func TestDiscord_MinLevelError(t *testing.T) {
	hook := &fakeWebhook{done: make(chan struct{}, 4)}
	d := newDiscord(hook, "id", "tok", DiscordOptions{MinLevel: LevelError, Logger: NewLog(nil).logger})

	d.Notify(Notification{MatchID: "m1", Level: LevelSuccess, Message: "Score updated successfully"})
	d.Notify(Notification{MatchID: "m1", Level: LevelError, Message: "Match not found"})
	waitForPosts(t, hook, 1)

	hook.mu.Lock()
	defer hook.mu.Unlock()
	require.Len(t, hook.calls, 1)
	assert.Contains(t, hook.calls[0].Content, "Match not found")
}

func TestDiscord_RepeatedErrorsAreHeldBack(t *testing.T) {
	hook := &fakeWebhook{done: make(chan struct{}, 8)}
	d := newDiscord(hook, "id", "tok", DiscordOptions{ErrorCooldown: time.Minute, Logger: NewLog(nil).logger})
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	outage := Notification{MatchID: "m1", Level: LevelError, Message: "Unable to reach the score service", At: t0}
	d.Notify(outage)
	for i := 1; i <= 5; i++ {
		n := outage
		n.At = t0.Add(time.Duration(i) * 5 * time.Second)
		d.Notify(n)
	}

	other := outage
	other.MatchID = "m2"
	other.At = t0.Add(10 * time.Second)
	d.Notify(other)

	later := outage
	later.At = t0.Add(2 * time.Minute)
	d.Notify(later)

	waitForPosts(t, hook, 3)
	hook.mu.Lock()
	defer hook.mu.Unlock()
	assert.Len(t, hook.calls, 3)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" Error ")
	require.NoError(t, err)
	assert.Equal(t, LevelError, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)

	assert.True(t, LevelError.AtLeast(LevelSuccess))
	assert.False(t, LevelInfo.AtLeast(LevelSuccess))
}

func TestNewDiscord_RequiresCredentials(t *testing.T) {
	_, err := NewDiscord("", "", DiscordOptions{})
	assert.Error(t, err)
}
