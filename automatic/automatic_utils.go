package automatic

// Batch trials: many computer searches against random fleets.

import (
	"context"
	"encoding/csv"
	"errors"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/salvo/config"
	"github.com/domino14/salvo/game"
)

var (
	TrialCounter *expvar.Int
	IsPlaying    *expvar.Int
)

func init() {
	TrialCounter = expvar.NewInt("trialsCompleted")
	IsPlaying = expvar.NewInt("isPlaying")
}

var ErrAlreadyPlaying = errors.New("trials are already being played, please wait till complete")
var ErrNoTrials = errors.New("no trials to play")

const progressEvery = 100

var running atomic.Bool

type Job struct {
	Num  int
	Seed []byte
}

type TrialOptions struct {
	// Games is the number of trials. Zero plays one per seed.
	Games   int
	Threads int
	// Seeds fix the first len(Seeds) trials; the rest are random.
	Seeds []Seed
	// Log receives a CSV line per finished trial.
	Log   io.Writer
	Store *Store
	// GameOptions apply to every worker's game. Writers they carry must be
	// safe for concurrent use.
	GameOptions []game.Option
}

// RunTrials plays the trials across opts.Threads workers and blocks until
// they are done. If ctx is cancelled it stops queueing, lets running games
// wind down, and returns the summary of the finished ones along with the
// context's error.
func RunTrials(ctx context.Context, settings config.Settings, opts TrialOptions) (Summary, error) {
	if !running.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyPlaying
	}
	defer running.Store(false)

	games := opts.Games
	if games == 0 {
		games = len(opts.Seeds)
	}
	if games < 1 {
		return Summary{}, ErrNoTrials
	}
	threads := max(1, opts.Threads)
	runID := uuid.NewString()
	logger := log.With().Str("run", runID).Logger()

	if opts.Store != nil {
		if err := opts.Store.BeginRun(ctx, runID, settings); err != nil {
			return Summary{}, fmt.Errorf("registering run: %w", err)
		}
	}
	logger.Info().Int("games", games).Int("threads", threads).Msg("starting-trials")
	TrialCounter.Set(0)

	jobs := make(chan Job, 100)
	logChan := make(chan TrialResult, 100)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range games {
			j := Job{Num: i}
			if i < len(opts.Seeds) {
				j.Seed = opts.Seeds[i][:]
			}
			select {
			case jobs <- j:
			case <-gctx.Done():
				logger.Info().Int("queued", i).Msg("got-stop-signal")
				return nil
			}
		}
		logger.Debug().Msg("finished-queueing-jobs")
		return nil
	})

	var workers sync.WaitGroup
	workers.Add(threads)
	for w := range threads {
		g.Go(func() error {
			defer workers.Done()
			r, err := NewGameRunner(settings, logChan, opts.GameOptions...)
			if err != nil {
				return err
			}
			IsPlaying.Add(1)
			defer IsPlaying.Add(-1)
			for j := range jobs {
				if _, err := r.PlayGame(gctx, j.Seed); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("trial %d: %w", j.Num, err)
				}
			}
			logger.Debug().Int("worker", w).Msg("worker-done")
			return nil
		})
	}
	g.Go(func() error {
		workers.Wait()
		close(logChan)
		return nil
	})

	var acc accumulator
	g.Go(func() error {
		var cw *csv.Writer
		if opts.Log != nil {
			cw = csv.NewWriter(opts.Log)
			if err := cw.Write(LogHeader); err != nil {
				return err
			}
		}
		// finished games are kept even when the run is being cancelled.
		storeCtx := context.WithoutCancel(ctx)
		n := 0
		for res := range logChan {
			acc.push(res)
			TrialCounter.Add(1)
			n++
			if cw != nil {
				if err := cw.Write(res.Record()); err != nil {
					return err
				}
			}
			if opts.Store != nil {
				if err := opts.Store.AddResult(storeCtx, runID, res); err != nil {
					return fmt.Errorf("storing trial: %w", err)
				}
			}
			if n%progressEvery == 0 {
				if cw != nil {
					cw.Flush()
				}
				logger.Info().Int("completed", n).Msg("trials-progress")
			}
		}
		if cw != nil {
			cw.Flush()
			return cw.Error()
		}
		return nil
	})

	err := g.Wait()
	summary := acc.summary(runID)
	if err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		logger.Info().Int("completed", summary.Games).Msg("trials-cancelled")
		return summary, err
	}
	logger.Info().Int("games", summary.Games).Float64("mean-turns", summary.MeanTurns).
		Msg("all-trials-finished")
	return summary, nil
}
