package matchscore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the backend used by the original admin dashboard.
	DefaultBaseURL = "http://localhost:2000/api/v2"

	defaultTimeout = 10 * time.Second
)

// Client talks to the match score backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Options tunes a Client. Zero values fall back to defaults.
type Options struct {
	Timeout           time.Duration
	RequestsPerMinute int
	Logger            *log.Logger
}

// New creates a backend client rooted at baseURL (e.g. http://host/api/v2).
func New(baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 600
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[matchscore] ", log.LstdFlags)
	}

	rps := float64(opts.RequestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(rps), 4),
		logger:     opts.Logger,
	}
}

// envelope is the backend's response convention: data on 2xx, message otherwise.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// FetchMatch fetches the authoritative snapshot of one match.
func (c *Client) FetchMatch(ctx context.Context, sport Sport, matchID string) (*Match, error) {
	path := fmt.Sprintf("/matchscore/%sMatches/%s", sport, url.PathEscape(matchID))

	var data struct {
		Match *Match `json:"match"`
	}
	if err := c.do(ctx, "fetch match", http.MethodGet, path, nil, nil, &data); err != nil {
		return nil, err
	}
	if data.Match == nil {
		return nil, &APIError{Kind: KindNotFound, Op: "fetch match", Message: "No match data found"}
	}
	if data.Match.Sport == "" {
		data.Match.Sport = sport
	}
	data.Match.Sport = data.Match.Sport.normalize()
	data.Match.Status = data.Match.Status.Normalize()
	return data.Match, nil
}

// FetchTeam fetches a team roster.
func (c *Client) FetchTeam(ctx context.Context, teamID string) (*Team, error) {
	path := fmt.Sprintf("/admin/team/%s", url.PathEscape(teamID))

	var data struct {
		Team *Team `json:"team"`
	}
	if err := c.do(ctx, "fetch team", http.MethodGet, path, nil, nil, &data); err != nil {
		return nil, err
	}
	if data.Team == nil {
		return nil, &APIError{Kind: KindNotFound, Op: "fetch team", Message: "No team data found"}
	}
	if data.Team.ID == "" {
		data.Team.ID = teamID
	}
	return data.Team, nil
}

// ListMatches fetches the admin match board (upcoming and live matches).
func (c *Client) ListMatches(ctx context.Context) (*Board, error) {
	var board Board
	if err := c.do(ctx, "list matches", http.MethodGet, "/matchScore/allmatches", nil, nil, &board); err != nil {
		return nil, err
	}
	for i := range board.Upcoming {
		board.Upcoming[i].Sport = board.Upcoming[i].Sport.normalize()
		board.Upcoming[i].Status = board.Upcoming[i].Status.Normalize()
	}
	for i := range board.Live {
		board.Live[i].Sport = board.Live[i].Sport.normalize()
		board.Live[i].Status = board.Live[i].Status.Normalize()
	}
	return &board, nil
}

// UpdateBallStats applies one ball/event to the match.
func (c *Client) UpdateBallStats(ctx context.Context, sport Sport, matchID string, payload Payload) error {
	path := fmt.Sprintf("/matchscore/%sMatches/ballstats/%s", sport, url.PathEscape(matchID))
	return c.do(ctx, "update score", http.MethodPatch, path, nil, payload, nil)
}

// UpdateStatus moves the match to the status in params ("status" plus toss fields for cricket).
func (c *Client) UpdateStatus(ctx context.Context, sport Sport, matchID string, params url.Values) error {
	path := fmt.Sprintf("/matchscore/%sMatches/status/%s", sport, url.PathEscape(matchID))
	return c.do(ctx, "update status", http.MethodPatch, path, params, nil, nil)
}

// do performs a rate-limited request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Kind: KindNetwork, Op: op, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := KindServer
		if resp.StatusCode == http.StatusNotFound {
			kind = KindNotFound
		}
		message := env.Message
		if decodeErr != nil || message == "" {
			message = fmt.Sprintf("%s failed: %s", op, truncate(raw, 200))
			if len(bytes.TrimSpace(raw)) == 0 {
				message = fmt.Sprintf("%s failed with status %d", op, resp.StatusCode)
			}
		}
		c.logger.Printf("⚠️  %s %s -> %d: %s", method, path, resp.StatusCode, message)
		return &APIError{Kind: kind, Op: op, StatusCode: resp.StatusCode, Message: message}
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return &APIError{Kind: KindServer, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w (body: %s)", decodeErr, truncate(raw, 200))}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &APIError{Kind: KindNotFound, Op: op, StatusCode: resp.StatusCode, Message: "response contained no data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Kind: KindServer, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
