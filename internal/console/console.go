// Package console is a line-oriented scoring desk for operators without the
// web dashboard. One console edits one match at a time.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-andiamo/splitter"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
)

// ErrQuit is returned by Execute when the operator asks to leave.
var ErrQuit = errors.New("quit")

// Opener opens (or reuses) the session of a match.
type Opener interface {
	Open(ctx context.Context, sport matchscore.Sport, matchID string) (*scoring.Session, bool, error)
}

// Console reads commands and applies them to the current session.
type Console struct {
	sessions Opener
	out      io.Writer
	split    splitter.Splitter
	current  *scoring.Session
}

// New creates a console writing to out.
func New(sessions Opener, out io.Writer) (*Console, error) {
	// quoted arguments keep multi-word names together: player "Jos Buttler"
	sp, err := splitter.NewSplitter(' ', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
	if err != nil {
		return nil, fmt.Errorf("creating splitter: %w", err)
	}
	return &Console{sessions: sessions, out: out, split: sp}, nil
}

// Current returns the session being edited, or nil.
func (c *Console) Current() *scoring.Session {
	return c.current
}

// Run executes lines from in until EOF, quit or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	c.prompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.Execute(ctx, scanner.Text()); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(c.out, "error: %s\n", matchscore.UserMessage(err))
		}
		c.prompt()
	}
	return scanner.Err()
}

func (c *Console) prompt() {
	if c.current == nil {
		fmt.Fprint(c.out, "scoredesk> ")
		return
	}
	fmt.Fprintf(c.out, "%s/%s> ", c.current.Sport(), c.current.MatchID())
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	args, err := c.args(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "help", "?":
		c.help()
		return nil
	case "quit", "exit":
		return ErrQuit
	case "open":
		return c.open(ctx, args)
	}

	if c.current == nil {
		return errors.New("no match open; use: open <sport> <matchId>")
	}
	s := c.current

	switch cmd {
	case "show":
		c.show()
	case "actions":
		for _, a := range s.Adapter().ListActions() {
			fmt.Fprintf(c.out, "  %-12s %s\n", a.ID, a.Label)
		}
	case "players":
		c.listPlayers(s.Players())
	case "bowlers":
		c.listPlayers(s.Bowlers())
	case "batting":
		if len(args) != 1 {
			return errors.New("usage: batting <team>")
		}
		return s.SelectBattingTeam(ctx, c.resolveTeam(args[0]))
	case "player":
		if len(args) != 1 {
			return errors.New("usage: player <name|id>")
		}
		id, err := resolvePlayer(args[0], s.Players())
		if err != nil {
			return err
		}
		return s.SetPlayer(id)
	case "bowler":
		if len(args) != 1 {
			return errors.New("usage: bowler <name|id>")
		}
		id, err := resolvePlayer(args[0], s.Bowlers())
		if err != nil {
			return err
		}
		return s.SetBowler(id)
	case "action":
		if len(args) == 0 {
			s.ClearAction()
			return nil
		}
		return s.SetAction(scoring.Action(strings.ToLower(args[0])))
	case "aux":
		switch len(args) {
		case 1:
			s.ClearAuxiliary(scoring.Field(args[0]))
			return nil
		case 2:
			return s.SetAuxiliary(scoring.Field(args[0]), args[1])
		}
		return errors.New("usage: aux <field> [value]")
	case "submit":
		result, err := s.Submit(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✓ %s recorded", result.Action)
		if result.Snapshot.Match != nil {
			fmt.Fprintf(c.out, " (%s)", result.Snapshot.Match.Scoreline())
		}
		fmt.Fprintln(c.out)
	case "toss":
		if len(args) != 2 {
			return errors.New("usage: toss <team> <batting|bowling>")
		}
		choice, err := scoring.ParseTossChoice(args[1])
		if err != nil {
			return err
		}
		return s.SetToss(scoring.TossDecision{WinnerTeamID: c.resolveTeam(args[0]), Choice: choice})
	case "start":
		if err := s.StartMatch(ctx, nil); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✓ match %s is live\n", s.MatchID())
	case "complete":
		if err := s.CompleteMatch(ctx); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "✓ match %s completed\n", s.MatchID())
	case "close":
		s.Close()
		c.current = nil
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (c *Console) args(line string) ([]string, error) {
	parts, err := c.split.Split(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("parsing command: %w", err)
	}
	args := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "\"“”")
		if p != "" {
			args = append(args, p)
		}
	}
	return args, nil
}

func (c *Console) open(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: open <sport> <matchId>")
	}
	sport, err := matchscore.ParseSport(args[0])
	if err != nil {
		return err
	}
	s, _, err := c.sessions.Open(ctx, sport, args[1])
	if err != nil {
		return err
	}
	c.current = s
	c.show()
	return nil
}

func (c *Console) show() {
	v := c.current.View()
	fmt.Fprintf(c.out, "%s %s [%s] on %s\n", v.Sport, v.MatchID, v.Status, v.Surface)
	if v.Scoreline != "" {
		fmt.Fprintf(c.out, "  %s\n", v.Scoreline)
	}
	if v.BattingTeamID != "" {
		fmt.Fprintf(c.out, "  batting %s, bowling %s\n", v.BattingTeamID, v.BowlingTeamID)
	}
	if v.Toss != nil {
		fmt.Fprintf(c.out, "  toss: %s chose %s\n", v.Toss.WinnerTeamID, v.Toss.Choice)
	}

	fields := make([]string, 0, len(v.Selection.Fields))
	for k, val := range v.Selection.Fields {
		fields = append(fields, fmt.Sprintf("%s=%v", k, val))
	}
	sort.Strings(fields)
	fmt.Fprintf(c.out, "  player=%q action=%q %s submittable=%t\n",
		v.Selection.PlayerID, v.Selection.Action, strings.Join(fields, " "), v.Submittable)
}

func (c *Console) listPlayers(players []matchscore.Player) {
	if len(players) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	for _, p := range players {
		fmt.Fprintf(c.out, "  %-24s %s\n", p.ID, p.Name)
	}
}

func (c *Console) help() {
	fmt.Fprint(c.out, `commands:
  open <sport> <matchId>      edit a match
  show                        current state and selection
  actions | players | bowlers list choices
  batting <team>              pick the batting team (cricket)
  player <name|id>            pick the acting player
  bowler <name|id>            pick the bowler (cricket)
  action [id]                 pick or clear the action
  aux <field> [value]         set or clear an extra input
  submit                      send the selection
  toss <team> <batting|bowling>
  start | complete            change match status
  close | quit
`)
}

// resolveTeam maps a loosely typed team name onto a team id of the current
// match. Unmatched input is passed through for the session to reject.
func (c *Console) resolveTeam(input string) string {
	snap, ok := c.current.Snapshot()
	if !ok || snap.Match == nil {
		return input
	}
	m := snap.Match
	if m.HasTeam(input) {
		return input
	}
	teams := []matchscore.Player{
		{ID: m.Team1.ID, Name: m.Team1Label()},
		{ID: m.Team2.ID, Name: m.Team2Label()},
	}
	if id, err := resolvePlayer(input, teams); err == nil {
		return id
	}
	return input
}

// resolvePlayer finds the id of the entry named (or identified) by input.
// An exact id or name wins; otherwise the closest fuzzy name match is used.
func resolvePlayer(input string, candidates []matchscore.Player) (string, error) {
	if len(candidates) == 0 {
		return input, nil
	}
	lower := strings.ToLower(strings.TrimSpace(input))
	names := make([]string, len(candidates))
	for i, p := range candidates {
		if p.ID == input || strings.ToLower(p.Name) == lower {
			return p.ID, nil
		}
		names[i] = strings.ToLower(p.Name)
	}

	ranks := fuzzy.RankFind(lower, names)
	if len(ranks) == 0 {
		return "", fmt.Errorf("no player matches %q", input)
	}
	sort.Sort(ranks)
	if len(ranks) > 1 && ranks[0].Distance == ranks[1].Distance {
		return "", fmt.Errorf("%q is ambiguous: %s or %s", input,
			candidates[ranks[0].OriginalIndex].Name, candidates[ranks[1].OriginalIndex].Name)
	}
	return candidates[ranks[0].OriginalIndex].ID, nil
}
