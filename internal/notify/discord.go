package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DefaultErrorCooldown keeps a failing backend from flooding the channel: a
// poller reports every failed tick.
const DefaultErrorCooldown = time.Minute

// webhookExecutor is the slice of the discordgo session the sink uses.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordOptions tunes the Discord sink.
type DiscordOptions struct {
	// MinLevel is the least severe level posted. Defaults to LevelSuccess.
	MinLevel Level
	// ErrorCooldown is how long an identical error for the same match is
	// held back after it was posted. Defaults to DefaultErrorCooldown.
	ErrorCooldown time.Duration
	Logger        *log.Logger
}

// Discord mirrors notifications into a Discord channel through a webhook so
// the rest of the scoring crew sees what the desk is doing.
type Discord struct {
	session   webhookExecutor
	webhookID string
	token     string
	minLevel  Level
	cooldown  time.Duration
	logger    *log.Logger

	mu         sync.Mutex
	lastErrors map[string]time.Time
}

// NewDiscord creates a webhook sink. Webhooks need no bot token.
func NewDiscord(webhookID, token string, opts DiscordOptions) (*Discord, error) {
	if webhookID == "" || token == "" {
		return nil, fmt.Errorf("discord webhook id and token are required")
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return newDiscord(session, webhookID, token, opts), nil
}

func newDiscord(session webhookExecutor, webhookID, token string, opts DiscordOptions) *Discord {
	if opts.MinLevel == "" {
		opts.MinLevel = LevelSuccess
	}
	if opts.ErrorCooldown <= 0 {
		opts.ErrorCooldown = DefaultErrorCooldown
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[discord] ", log.LstdFlags)
	}
	return &Discord{
		session:    session,
		webhookID:  webhookID,
		token:      token,
		minLevel:   opts.MinLevel,
		cooldown:   opts.ErrorCooldown,
		logger:     opts.Logger,
		lastErrors: make(map[string]time.Time),
	}
}

// Notify posts n asynchronously; delivery failures are only logged.
func (d *Discord) Notify(n Notification) {
	if !n.Level.AtLeast(d.minLevel) {
		return
	}
	if n.Level == LevelError && d.coolingDown(n) {
		return
	}
	params := &discordgo.WebhookParams{
		Content: formatDiscord(n),
	}
	go func() {
		if _, err := d.session.WebhookExecute(d.webhookID, d.token, false, params); err != nil {
			d.logger.Printf("⚠️  webhook delivery failed: %v", err)
		}
	}()
}

// coolingDown reports whether the same error was posted for the match within
// the cooldown, and records the post otherwise.
func (d *Discord) coolingDown(n Notification) bool {
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	key := n.MatchID + "\x00" + n.Message

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastErrors[key]; ok && at.Sub(last) < d.cooldown {
		return true
	}
	for k, last := range d.lastErrors {
		if at.Sub(last) >= d.cooldown {
			delete(d.lastErrors, k)
		}
	}
	d.lastErrors[key] = at
	return false
}

func formatDiscord(n Notification) string {
	icon := ":information_source:"
	switch n.Level {
	case LevelSuccess:
		icon = ":white_check_mark:"
	case LevelError:
		icon = ":warning:"
	}
	return fmt.Sprintf("%s **%s** %s", icon, n.MatchID, n.Message)
}
