// Command scorectl is the operator CLI for the scoring desk.
//
// Usage:
//
//	scorectl matches
//	scorectl snapshot cricket 64f0c2 [--cached]
//	scorectl journal 64f0c2 --limit 20
//	scorectl console [sport matchId]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fortuna/scoredesk/internal/cache"
	"github.com/fortuna/scoredesk/internal/config"
	"github.com/fortuna/scoredesk/internal/console"
	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/notify"
	"github.com/fortuna/scoredesk/internal/scoring"
	"github.com/fortuna/scoredesk/internal/session"
	"github.com/fortuna/scoredesk/internal/store"
	"github.com/fortuna/scoredesk/internal/store/repository"
)

func main() {
	root := &cobra.Command{
		Use:          "scorectl",
		Short:        "Scoring desk operator CLI",
		SilenceUsage: true,
	}

	root.AddCommand(matchesCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(journalCmd())
	root.AddCommand(consoleCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(cfg *config.Config, verbose bool) *matchscore.Client {
	opts := matchscore.Options{Timeout: cfg.APITimeout, RequestsPerMinute: cfg.RequestsPerMinute}
	if !verbose {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return matchscore.New(cfg.ScoreAPIBase, opts)
}

func matchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matches",
		Short: "List upcoming and live matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			board, err := newClient(cfg, false).ListMatches(cmd.Context())
			if err != nil {
				return fmt.Errorf("list matches: %s", matchscore.UserMessage(err))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSPORT\tSTATUS\tMATCH\tOPEN AT")
			for _, group := range [][]matchscore.Match{board.Live, board.Upcoming} {
				for i := range group {
					m := &group[i]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s vs %s\t%s\n",
						m.ID, m.Sport, m.Status, m.Team1Label(), m.Team2Label(), scoring.SurfaceFor(m).Path(m.ID))
				}
			}
			return w.Flush()
		},
	}
}

func snapshotCmd() *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "snapshot <sport> <matchId>",
		Short: "Print the current state of a match",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			sport, err := matchscore.ParseSport(args[0])
			if err != nil {
				return err
			}

			var out interface{}
			if cached {
				if cfg.RedisURL == "" {
					return fmt.Errorf("--cached needs REDIS_URL")
				}
				rc, err := cache.NewRedisCache(cfg.RedisURL, cfg.SnapshotTTL)
				if err != nil {
					return err
				}
				defer rc.Close()
				if out, err = rc.LoadSnapshot(cmd.Context(), sport, args[1]); err != nil {
					return err
				}
			} else {
				match, err := newClient(cfg, false).FetchMatch(cmd.Context(), sport, args[1])
				if err != nil {
					return fmt.Errorf("fetch match: %s", matchscore.UserMessage(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), match.Scoreline())
				out = match
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Read the snapshot cached by scoredesk instead of the backend")
	return cmd
}

func journalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal <matchId>",
		Short: "Show recorded score events and status changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JournalDSN == "" {
				return fmt.Errorf("JOURNAL_DSN is required")
			}
			db, err := store.NewDatabase(cfg.JournalDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			journal, err := repository.NewJournalRepository(db).MatchJournal(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tKIND\tDETAIL\tSTATUS")
			for _, ev := range journal.ScoreEvents {
				fmt.Fprintf(w, "%s\tscore\t%s %s\t%s\n", ev.CreatedAt.Format("15:04:05"), ev.Action, ev.Payload, ev.Status)
			}
			for _, tr := range journal.Transitions {
				fmt.Fprintf(w, "%s\tstatus\t%s -> %s\t%s\n", tr.CreatedAt.Format("15:04:05"), tr.FromStatus, tr.ToStatus, tr.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", repository.DefaultListLimit, "Maximum rows per table")
	return cmd
}

func consoleCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "console [sport matchId]",
		Short: "Score a match interactively",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("give both sport and matchId, or neither")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			logger := log.New(io.Discard, "", 0)
			if verbose {
				logger = log.New(cmd.ErrOrStderr(), "[scoring] ", log.LstdFlags)
			}
			manager := session.NewManager(scoring.Deps{
				API: newClient(cfg, verbose),
				Notifier: notify.NotifierFunc(func(n notify.Notification) {
					marker := "•"
					switch n.Level {
					case notify.LevelSuccess:
						marker = "✓"
					case notify.LevelError:
						marker = "⚠️ "
					}
					fmt.Fprintf(out, "\n%s %s\n", marker, n.Message)
				}),
				PollInterval: cfg.PollInterval,
				Logger:       logger,
			}, session.DefaultConfig())
			defer manager.CloseAll()

			c, err := console.New(manager, out)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				if err := c.Execute(ctx, "open "+args[0]+" "+args[1]); err != nil {
					return err
				}
			}
			return runConsole(ctx, c, cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log backend requests")
	return cmd
}

func runConsole(ctx context.Context, c *console.Console, in io.Reader) error {
	err := c.Run(ctx, in)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
