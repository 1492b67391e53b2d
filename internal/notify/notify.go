// Package notify is the shared channel through which the scoring workflow
// reports outcomes to the admin.
package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// ParseLevel reads a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelInfo, LevelSuccess, LevelError:
		return l, nil
	}
	return "", fmt.Errorf("unknown notification level %q", s)
}

// AtLeast reports whether l is as severe as min: info < success < error.
func (l Level) AtLeast(min Level) bool {
	return l.severity() >= min.severity()
}

func (l Level) severity() int {
	switch l {
	case LevelSuccess:
		return 1
	case LevelError:
		return 2
	}
	return 0
}

// Notification is one message for the admin.
type Notification struct {
	MatchID string    `json:"match_id"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// Multi fans a notification out to every sink.
type Multi []Notifier

// Notify delivers n to every non-nil sink.
func (m Multi) Notify(n Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// Discard drops everything.
var Discard Notifier = NotifierFunc(func(Notification) {})

// Send stamps and delivers a notification. A nil notifier is a no-op.
func Send(n Notifier, matchID string, level Level, message string) {
	if n == nil {
		return
	}
	n.Notify(Notification{
		MatchID: matchID,
		Level:   level,
		Message: message,
		At:      time.Now(),
	})
}

// Log writes notifications to a logger.
type Log struct {
	logger *log.Logger
}

// NewLog creates a log sink. A nil logger uses a "[notify] " prefixed default.
func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	return &Log{logger: logger}
}

// Notify logs n.
func (l *Log) Notify(n Notification) {
	marker := "•"
	switch n.Level {
	case LevelSuccess:
		marker = "✓"
	case LevelError:
		marker = "⚠️ "
	}
	l.logger.Printf("%s match %s: %s", marker, n.MatchID, n.Message)
}

// Recorder keeps the most recent notifications per match so a view can
// render them after the fact.
type Recorder struct {
	mu      sync.RWMutex
	limit   int
	byMatch map[string][]Notification
}

// NewRecorder keeps up to limit notifications per match.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{
		limit:   limit,
		byMatch: make(map[string][]Notification),
	}
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.byMatch[n.MatchID], n)
	if len(list) > r.limit {
		list = list[len(list)-r.limit:]
	}
	r.byMatch[n.MatchID] = list
}

// Recent returns the recorded notifications for matchID, oldest first.
func (r *Recorder) Recent(matchID string) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byMatch[matchID]
	out := make([]Notification, len(list))
	copy(out, list)
	return out
}

// Last returns the newest notification for matchID.
func (r *Recorder) Last(matchID string) (Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byMatch[matchID]
	if len(list) == 0 {
		return Notification{}, false
	}
	return list[len(list)-1], true
}

// Forget drops the history for matchID.
func (r *Recorder) Forget(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byMatch, matchID)
}
