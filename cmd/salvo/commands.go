package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/domino14/salvo/automatic"
	"github.com/domino14/salvo/config"
	"github.com/domino14/salvo/game"
	"github.com/domino14/salvo/montecarlo"
	"github.com/domino14/salvo/montecarlo/stats"
)

const hottestCells = 5

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:     "salvo",
		Short:   "Hunt a hidden fleet by sampling the boards that agree with what you know",
		Version: GitVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Bind(cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			setupLogging(cfg)
			log.Debug().Interface("config", cfg.SanitizedSettings()).Msg("loaded-config")
			return nil
		},
		SilenceUsage: true,
	}
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(newAutoplayCmd(cfg), newTrialsCmd(cfg), newAnalyzeCmd(),
		newRunsCmd(), newSeedsCmd())
	return root
}

// sampleLog opens the per-turn sample log, if one is configured.
func sampleLog(s config.Settings) (io.WriteCloser, error) {
	if s.SampleLog == "" {
		return nil, nil
	}
	return os.OpenFile(s.SampleLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func newAutoplayCmd(cfg *config.Config) *cobra.Command {
	var games int
	var watch bool
	var historyPath string
	cmd := &cobra.Command{
		Use:   "autoplay",
		Short: "Hide a fleet and let the computer search for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cfg.Settings()
			if err != nil {
				return err
			}
			opts := []game.Option{}
			if sl, err := sampleLog(settings); err != nil {
				return err
			} else if sl != nil {
				defer sl.Close()
				opts = append(opts, game.WithLogStream(sl))
			}
			g, err := game.NewGame(settings, opts...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i := range games {
				if i > 0 {
					if err := g.Reseed(nil); err != nil {
						return err
					}
				}
				if err := autoplay(cmd.Context(), out, g, watch); err != nil {
					return err
				}
				if historyPath != "" {
					if err := appendHistory(historyPath, g.History()); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&games, "games", 1, "number of games to play")
	cmd.Flags().BoolVar(&watch, "watch", false, "show the probability heat map before every probe")
	cmd.Flags().StringVar(&historyPath, "history", "", "append each game's history, in YAML, to this file")
	return cmd
}

func autoplay(ctx context.Context, out io.Writer, g *game.Game, watch bool) error {
	fmt.Fprintln(out, g.Truth().ToDisplayText(g.Catalog().Ships()))
	for !g.Done() {
		if watch {
			pm, err := g.ComputeProbabilityMap(ctx)
			if err != nil {
				return err
			}
			hm := stats.NewHeatMap(pm, g.Evidence().Probed)
			hm.Display(out)
			fmt.Fprintf(out, "hottest: %s\n%s, %d threads\n", hm.Hottest(hottestCells), g.LastTurnStats(), g.Threads())
		}
		if _, _, err := g.Step(ctx); err != nil {
			return err
		}
		if watch {
			fmt.Fprintln(out, g.ToDisplayText())
		}
	}
	if !watch {
		fmt.Fprintln(out, g.ToDisplayText())
	}
	fmt.Fprintf(out, "Sunk the fleet in %d probes.\n", g.Turns())
	return nil
}

func appendHistory(path string, h game.History) error {
	bts, err := h.ToYAML()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "---\n%s", bts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// lockedWriter lets trial workers share the sample log.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics-server-failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("serving-metrics")
	return srv
}

func newTrialsCmd(cfg *config.Config) *cobra.Command {
	var (
		games       int
		workers     int
		logPath     string
		dbPath      string
		seedsPath   string
		summaryPath string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "Play many games and report how many probes they take",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			settings, err := cfg.Settings()
			if err != nil {
				return err
			}
			opts := automatic.TrialOptions{Games: games, Threads: workers}

			if seedsPath != "" {
				if opts.Seeds, err = automatic.LoadSeeds(seedsPath); err != nil {
					return err
				}
			}
			logfile, err := os.Create(logPath)
			if err != nil {
				return err
			}
			defer logfile.Close()
			opts.Log = logfile

			if dbPath != "" {
				store, err := automatic.OpenStore(ctx, dbPath)
				if err != nil {
					return err
				}
				defer store.Close()
				opts.Store = store
			}
			if sl, err := sampleLog(settings); err != nil {
				return err
			} else if sl != nil {
				defer sl.Close()
				opts.GameOptions = append(opts.GameOptions, game.WithLogStream(&lockedWriter{w: sl}))
			}
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector())
				opts.GameOptions = append(opts.GameOptions, game.WithMetrics(montecarlo.NewMetrics(reg)))
				srv := serveMetrics(metricsAddr, reg)
				defer srv.Close()
			}

			summary, err := automatic.RunTrials(ctx, settings, opts)
			fmt.Fprint(cmd.OutOrStdout(), summary.String())
			if err != nil {
				return err
			}
			if summaryPath != "" {
				bts, err := summary.ToYAML()
				if err != nil {
					return err
				}
				return os.WriteFile(summaryPath, bts, 0o644)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&games, "games", 100, "number of games (0 plays one per seed)")
	cmd.Flags().IntVar(&workers, "workers", 1, "games played at once")
	cmd.Flags().StringVar(&logPath, "log", "trials.csv", "CSV log of every game")
	cmd.Flags().StringVar(&dbPath, "db", "", "also store results in this sqlite database")
	cmd.Flags().StringVar(&seedsPath, "seeds", "", "seed file for reproducible games")
	cmd.Flags().StringVar(&summaryPath, "summary", "", "write the summary, in YAML, to this file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics and expvars on this address")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "analyze [trial log]",
		Short: "Summarize a trial log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := automatic.AnalyzeLogFile(args[0])
			if err != nil {
				return err
			}
			if asYAML {
				bts, err := summary.ToYAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(bts)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), summary.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print YAML")
	return cmd
}

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [database]",
		Short: "List the trial runs stored in a sqlite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := automatic.OpenStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tDIM\tSHIPS\tORDERING\tTERMINATION\tGAMES\tMEAN\tMIN\tMAX")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%d\t%.2f\t%d\t%d\n",
					r.RunID, r.StartedAt.Format(time.RFC3339), r.Dim, r.Ships, r.Ordering,
					r.Termination, r.Games, r.MeanTurns, r.MinTurns, r.MaxTurns)
			}
			return tw.Flush()
		},
	}
}

func newSeedsCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seeds [file]",
		Short: "Write random seeds for reproducible trials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be positive, got %d", count)
			}
			if err := automatic.SaveSeeds(automatic.GenerateSeeds(count), args[0]); err != nil {
				return err
			}
			log.Info().Int("count", count).Str("file", args[0]).Msg("wrote-seeds")
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100, "number of seeds")
	return cmd
}
