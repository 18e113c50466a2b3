// Package game plays the search: it owns the hidden fleet, turns probes
// into evidence, and picks each next probe from the sampled probability
// map.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/salvo/board"
	"github.com/domino14/salvo/cache"
	"github.com/domino14/salvo/config"
	"github.com/domino14/salvo/evidence"
	"github.com/domino14/salvo/montecarlo"
)

const SeedLength = 32

var ErrNoGuess = errors.New("every cell has been probed")
var ErrBadSeed = errors.New("seed must be 32 bytes")
var ErrWrongBoard = errors.New("layout does not match this game's board")

type Option func(*Game)

// WithSeed makes the game reproducible: the hidden fleet and every sampling
// decision come from this seed.
func WithSeed(seed []byte) Option {
	return func(g *Game) {
		g.seed = seed
	}
}

func WithMetrics(m *montecarlo.Metrics) Option {
	return func(g *Game) {
		g.metrics = m
	}
}

// WithLogStream records every sampled turn, in YAML, to w.
func WithLogStream(w io.Writer) Option {
	return func(g *Game) {
		g.logStream = w
	}
}

// Game is one search session against one hidden fleet. It is not safe for
// concurrent use.
type Game struct {
	id       string
	settings config.Settings
	cat      *board.Catalog

	seed      []byte
	rng       *frand.RNG
	metrics   *montecarlo.Metrics
	logStream io.Writer

	truth *board.Layout
	store *evidence.Store
	agg   *montecarlo.Aggregator

	// probes made since the last sampled map.
	sinceRun []montecarlo.Probe
	pm       *montecarlo.ProbabilityMap
	history  []Turn
}

func seededRNG(seed []byte) ([]byte, *frand.RNG, error) {
	if seed == nil {
		seed = frand.Bytes(SeedLength)
	}
	if len(seed) != SeedLength {
		return nil, nil, fmt.Errorf("%w: got %d", ErrBadSeed, len(seed))
	}
	return seed, frand.NewCustom(seed, 1024, 12), nil
}

// NewGame validates the settings, looks up the placement catalog for the
// board shape and hides a random fleet.
func NewGame(s config.Settings, opts ...Option) (*Game, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	fleet, err := board.NewFleet(s.Ships)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("catalog:%d:%v", s.Dim, s.Ships)
	cat, err := cache.Load(key, func() (*board.Catalog, error) {
		return board.NewCatalog(s.Dim, fleet)
	})
	if err != nil {
		return nil, err
	}
	g := &Game{settings: s, cat: cat, seed: s.Seed}
	for _, opt := range opts {
		opt(g)
	}
	g.store = evidence.NewStore(cat)
	if err := g.Reseed(g.seed); err != nil {
		return nil, err
	}
	return g, nil
}

// Reseed restarts the game with a fresh random stream. A nil seed draws one
// from the system.
func (g *Game) Reseed(seed []byte) error {
	seed, rng, err := seededRNG(seed)
	if err != nil {
		return err
	}
	g.seed, g.rng = seed, rng

	sampler := montecarlo.NewSampler(rng)
	sampler.SetStepTimeout(g.settings.StepTimeout)
	sampler.SetMaxAttempts(g.settings.MaxAttempts)
	g.agg = montecarlo.NewAggregator(sampler, g.settings.Ordering, g.settings.Termination)
	g.agg.SetThreads(g.settings.Threads)
	g.agg.SetMetrics(g.metrics)
	if g.logStream != nil {
		g.agg.SetLogStream(g.logStream)
	}
	return g.Reset()
}

// Reset hides a new fleet and forgets all evidence and cached samples.
func (g *Game) Reset() error {
	truth, err := board.RandomLayout(g.cat, g.rng)
	if err != nil {
		return err
	}
	g.clear()
	g.truth = truth
	log.Debug().Str("game", g.id).Msg("new-fleet-hidden")
	return nil
}

func (g *Game) clear() {
	g.id = uuid.NewString()
	g.store.Reset()
	g.agg.Reset()
	g.sinceRun = nil
	g.pm = nil
	g.history = nil
}

// SetTruth replaces the hidden fleet and clears the evidence. The layout
// must come from this game's catalog.
func (g *Game) SetTruth(l *board.Layout) error {
	if l.Dim() != g.cat.Dim() || len(l.Placements()) != g.cat.NumShips() {
		return ErrWrongBoard
	}
	g.clear()
	g.truth = l
	return nil
}

// ComputeProbabilityMap samples the current evidence. The map is cached
// until the next probe.
func (g *Game) ComputeProbabilityMap(ctx context.Context) (*montecarlo.ProbabilityMap, error) {
	if g.pm != nil {
		return g.pm, nil
	}
	var last *montecarlo.Probe
	switch len(g.sinceRun) {
	case 0:
	case 1:
		last = &g.sinceRun[0]
	default:
		// the cached pool can only be filtered by a single probe.
		g.agg.DropPool()
	}
	pm, err := g.agg.Run(ctx, g.store, last)
	if err != nil {
		return nil, err
	}
	g.sinceRun = g.sinceRun[:0]
	g.pm = pm
	return pm, nil
}

// Probe checks a cell against the hidden fleet and records the outcome. If
// the hit completes a ship, the sink is announced to the evidence.
func (g *Game) Probe(c board.Cell) (Result, error) {
	return g.probe(c, -1)
}

func (g *Game) probe(c board.Cell, p float64) (Result, error) {
	if !c.InBounds(g.cat.Dim()) {
		return Miss, fmt.Errorf("%w: %v", board.ErrOutOfBounds, c)
	}
	ship, hit := g.truth.ShipAt(c)
	if err := g.store.RecordOutcome(c, hit); err != nil {
		return Miss, err
	}
	t := Turn{
		Number: len(g.history) + 1,
		Cell:   c,
		Coords: c.Coords(),
		Result: Miss,
		P:      p,
	}
	if g.pm != nil {
		t.Samples = g.pm.Samples()
	}
	if hit {
		t.Result = Hit
		placement := g.truth.Placement(ship)
		if g.store.Hits().IsSuperSet(placement.Mask()) {
			if err := g.store.AnnounceSunk(ship, placement); err != nil {
				return Hit, err
			}
			t.Sunk = g.cat.Ships()[ship].Name
			log.Debug().Str("game", g.id).Str("ship", t.Sunk).Msg("ship-sunk-announced")
		}
	}
	g.history = append(g.history, t)
	g.sinceRun = append(g.sinceRun, montecarlo.Probe{Cell: c, Hit: hit})
	g.pm = nil
	return t.Result, nil
}

// BestGuess is the cell with the highest probability that has not been
// probed yet. Ties go to the first such cell in row-major order.
func BestGuess(pm *montecarlo.ProbabilityMap, probed func(board.Cell) bool) (board.Cell, float64, bool) {
	var best board.Cell
	bestP := -1.0
	pm.Each(func(c board.Cell, p float64) bool {
		if !probed(c) && p > bestP {
			best, bestP = c, p
		}
		return true
	})
	return best, bestP, bestP >= 0
}

// Step samples, picks the best guess and probes it.
func (g *Game) Step(ctx context.Context) (board.Cell, Result, error) {
	logger := zerolog.Ctx(ctx)
	pm, err := g.ComputeProbabilityMap(ctx)
	if err != nil {
		return board.Cell{}, Miss, err
	}
	c, p, ok := BestGuess(pm, g.store.Probed)
	if !ok {
		return board.Cell{}, Miss, ErrNoGuess
	}
	res, err := g.probe(c, p)
	if err != nil {
		return c, res, err
	}
	logger.Debug().Str("game", g.id).Int("turn", len(g.history)).Str("cell", c.Coords()).
		Float64("p", p).Stringer("result", res).Msg("probed")
	return c, res, nil
}

// Done reports whether every ship cell has been hit.
func (g *Game) Done() bool {
	return g.store.NumHits() == g.cat.TotalLength()
}

// Turns is the number of probes made so far.
func (g *Game) Turns() int {
	return g.store.NumHits() + g.store.NumMisses()
}

// RunToCompletion plays until the fleet is sunk and returns the number of
// probes it took.
func (g *Game) RunToCompletion(ctx context.Context) (int, error) {
	for !g.Done() {
		if err := ctx.Err(); err != nil {
			return g.Turns(), err
		}
		if _, _, err := g.Step(ctx); err != nil {
			return g.Turns(), err
		}
	}
	zerolog.Ctx(ctx).Debug().Str("game", g.id).Int("turns", g.Turns()).Msg("fleet-sunk")
	return g.Turns(), nil
}

func (g *Game) ID() string {
	return g.id
}

func (g *Game) Seed() []byte {
	return g.seed
}

func (g *Game) Settings() config.Settings {
	return g.settings
}

func (g *Game) Catalog() *board.Catalog {
	return g.cat
}

func (g *Game) Truth() *board.Layout {
	return g.truth
}

func (g *Game) Evidence() *evidence.Store {
	return g.store
}

// Threads is how many samplers fill each turn's pool.
func (g *Game) Threads() int {
	return g.agg.Threads()
}

// LastTurnStats reports on the most recent sampling.
func (g *Game) LastTurnStats() montecarlo.TurnStats {
	return g.agg.LastTurn()
}
