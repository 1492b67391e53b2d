package scoring

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
)

// DefaultPollInterval matches the dashboard's refresh cadence.
const DefaultPollInterval = 5 * time.Second

// Snapshot is one applied match state, stamped with the dispatch sequence of
// the request that produced it.
type Snapshot struct {
	Match     *matchscore.Match `json:"match"`
	Seq       uint64            `json:"seq"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// PollerConfig tunes a SnapshotPoller.
type PollerConfig struct {
	Interval time.Duration
	Clock    Clock
	Notifier notify.Notifier
	Logger   *log.Logger
}

// SnapshotPoller keeps the displayed match in step with the backend. Every
// fetch is numbered when dispatched; a response is applied only if it is newer
// than the one on screen, so a slow tick can never overwrite a fresher refresh.
type SnapshotPoller struct {
	api      MatchFetcher
	sport    matchscore.Sport
	matchID  string
	interval time.Duration
	clock    Clock
	notifier notify.Notifier
	logger   *log.Logger

	dispatched atomic.Uint64
	// closed is terminal; a closed poller issues no further requests.
	closed atomic.Bool

	mu                sync.Mutex
	current           Snapshot
	hasSnapshot       bool
	listeners         []func(Snapshot)
	consecutiveErrors int

	deliverMu sync.Mutex
	delivered uint64

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSnapshotPoller creates a stopped poller for one match.
func NewSnapshotPoller(api MatchFetcher, sport matchscore.Sport, matchID string, cfg PollerConfig) *SnapshotPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[poller] ", log.LstdFlags)
	}
	return &SnapshotPoller{
		api:      api,
		sport:    sport,
		matchID:  matchID,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
	}
}

// OnSnapshot registers fn to receive every applied snapshot, in sequence
// order. fn must not call back into the poller.
func (p *SnapshotPoller) OnSnapshot(fn func(Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// Current returns the snapshot on display.
func (p *SnapshotPoller) Current() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.hasSnapshot
}

// FetchSnapshot fetches and applies the match state immediately. On failure
// the previous snapshot stays in place and the error is reported. The
// returned snapshot is the freshest one applied, which may be newer than
// this call's own response.
func (p *SnapshotPoller) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	if p.closed.Load() {
		snap, _ := p.Current()
		return snap, ErrSessionClosed
	}
	seq := p.dispatched.Add(1)

	match, err := p.api.FetchMatch(ctx, p.sport, p.matchID)
	if err != nil {
		p.recordFailure(ctx, err)
		snap, _ := p.Current()
		return snap, err
	}

	return p.apply(Snapshot{Match: match, Seq: seq, FetchedAt: p.clock.Now()}), nil
}

func (p *SnapshotPoller) apply(snap Snapshot) Snapshot {
	p.mu.Lock()
	if p.closed.Load() {
		current := p.current
		p.mu.Unlock()
		return current
	}
	if p.hasSnapshot && snap.Seq <= p.current.Seq {
		current := p.current
		p.mu.Unlock()
		p.logger.Printf("discarding stale snapshot for %s (seq %d, showing %d)", p.matchID, snap.Seq, current.Seq)
		return current
	}
	if p.consecutiveErrors > 0 {
		p.logger.Printf("✓ match %s snapshots recovered after %d failed fetches", p.matchID, p.consecutiveErrors)
	}
	p.current = snap
	p.hasSnapshot = true
	p.consecutiveErrors = 0
	listeners := append([]func(Snapshot){}, p.listeners...)
	p.mu.Unlock()

	p.deliver(snap, listeners)
	return snap
}

func (p *SnapshotPoller) deliver(snap Snapshot, listeners []func(Snapshot)) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	if snap.Seq <= p.delivered {
		return
	}
	p.delivered = snap.Seq
	for _, fn := range listeners {
		fn(snap)
	}
}

func (p *SnapshotPoller) recordFailure(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	p.consecutiveErrors++
	count := p.consecutiveErrors
	p.mu.Unlock()

	p.logger.Printf("⚠️  snapshot fetch for %s failed (%d consecutive): %v", p.matchID, count, err)
	notify.Send(p.notifier, p.matchID, notify.LevelError, matchscore.UserMessage(err))
}

// Start begins polling: one fetch immediately, then one per interval, until
// Stop is called or ctx ends. Starting a running poller is a no-op.
func (p *SnapshotPoller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.running || p.closed.Load() {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	ticker := p.clock.NewTicker(p.interval)
	p.wg.Add(1)
	go p.loop(ctx, ticker)

	p.logger.Printf("✓ polling match %s every %v", p.matchID, p.interval)
}

// Running reports whether the poller's timer is active.
func (p *SnapshotPoller) Running() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.running
}

// Stop tears the timer down and waits for in-flight ticks to finish. After
// Stop returns no further requests are issued until Start is called again.
func (p *SnapshotPoller) Stop() {
	p.runMu.Lock()
	if !p.running {
		p.runMu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.runMu.Unlock()

	p.wg.Wait()
	p.logger.Printf("stopped polling match %s", p.matchID)
}

// Close stops the poller for good. Later FetchSnapshot calls return
// ErrSessionClosed without a request, Start becomes a no-op, and a response
// still in flight is dropped instead of applied.
func (p *SnapshotPoller) Close() {
	p.closed.Store(true)
	p.Stop()
}

func (p *SnapshotPoller) loop(ctx context.Context, ticker Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.tick(ctx)
		}
	}
}

// tick runs one fetch in its own goroutine so a slow response never delays
// the next tick; ordering is settled by the sequence numbers.
func (p *SnapshotPoller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Printf("⚠️  panic during snapshot fetch for %s: %v", p.matchID, r)
			}
		}()
		p.FetchSnapshot(ctx)
	}()
}
