// Package montecarlo estimates where the hidden ships are by drawing many
// complete boards that agree with the evidence and counting how often each
// cell is occupied.
package montecarlo

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/domino14/salvo/board"
	"github.com/domino14/salvo/evidence"
)

// logTopCells is how many of the likeliest cells go into each logged turn.
const logTopCells = 5

// Probe is one guess and its outcome.
type Probe struct {
	Cell board.Cell
	Hit  bool
}

// LogTurn is a struct meant for serializing to a log-file, for debug
// and other purposes.
type LogTurn struct {
	Turn       int            `json:"turn" yaml:"turn"`
	LastProbe  string         `json:"last_probe,omitempty" yaml:"last_probe,omitempty"`
	LastHit    bool           `json:"last_hit,omitempty" yaml:"last_hit,omitempty"`
	Reused     int            `json:"reused" yaml:"reused"`
	Drawn      int            `json:"drawn" yaml:"drawn"`
	Attempts   int            `json:"attempts" yaml:"attempts"`
	Distinct   int            `json:"distinct" yaml:"distinct"`
	Candidates map[string]int `json:"candidates" yaml:"candidates,flow"`
	Top        []LogCell      `json:"top" yaml:"top,flow"`
}

type LogCell struct {
	Cell string  `json:"cell" yaml:"cell"`
	P    float64 `json:"p" yaml:"p"`
}

// Aggregator builds one probability map per turn. It keeps the previous
// turn's pool of boards and reuses the ones the newest probe did not rule
// out.
type Aggregator struct {
	sampler *Sampler
	workers []*Sampler
	policy  evidence.OrderingPolicy
	stop    StoppingCondition
	threads int

	metrics   *Metrics
	logStream io.Writer

	pool []SampledBoard
	turn int
	last TurnStats
}

func NewAggregator(sampler *Sampler, policy evidence.OrderingPolicy, sc StoppingCondition) *Aggregator {
	return &Aggregator{
		sampler: sampler,
		policy:  policy,
		stop:    sc,
		threads: 1,
	}
}

func (a *Aggregator) SetThreads(t int) {
	if t < 1 {
		t = 1
	}
	a.threads = t
	a.workers = nil
}

func (a *Aggregator) Threads() int {
	return a.threads
}

func (a *Aggregator) SetMetrics(m *Metrics) {
	a.metrics = m
	a.sampler.SetMetrics(m)
	a.workers = nil
}

// SetLogStream makes every turn append a YAML record to l.
func (a *Aggregator) SetLogStream(l io.Writer) {
	a.logStream = l
}

// Pool is the cached set of boards from the last turn.
func (a *Aggregator) Pool() []SampledBoard {
	return a.pool
}

// LastTurn reports on the most recent Run.
func (a *Aggregator) LastTurn() TurnStats {
	return a.last
}

// Reset drops the cached pool, as at the start of a new game.
func (a *Aggregator) Reset() {
	a.pool = nil
	a.turn = 0
	a.last = TurnStats{}
}

// DropPool forgets the cached boards without starting a new game.
func (a *Aggregator) DropPool() {
	a.pool = nil
}

// FilterPool keeps the boards that agree with one new probe: those holding
// the cell after a hit, or those without it after a miss.
func FilterPool(pool []SampledBoard, idx uint, hit bool) []SampledBoard {
	kept := make([]SampledBoard, 0, len(pool))
	for _, b := range pool {
		if b.Contains(idx) == hit {
			kept = append(kept, b)
		}
	}
	return kept
}

// turnPool is shared by the workers of one turn.
type turnPool struct {
	sync.Mutex
	stop   StoppingCondition
	start  time.Time
	boards []SampledBoard
	stats  TurnStats

	problem Problem
	order   []int
	shuffle bool
}

func (tp *turnPool) status() (int, bool) {
	tp.Lock()
	defer tp.Unlock()
	n := len(tp.boards)
	return n, tp.stop.Done(n, time.Since(tp.start))
}

func (tp *turnPool) add(b SampledBoard, st DrawStats) {
	tp.Lock()
	defer tp.Unlock()
	tp.stats.add(st)
	if b.mask == nil || tp.stop.Done(len(tp.boards), time.Since(tp.start)) {
		return
	}
	tp.boards = append(tp.boards, b)
	tp.stats.Drawn++
}

// Run refreshes the evidence and returns this turn's probability map. last
// is the probe made since the previous Run, or nil on the first turn.
func (a *Aggregator) Run(ctx context.Context, store *evidence.Store, last *Probe) (*ProbabilityMap, error) {
	logger := zerolog.Ctx(ctx)
	if err := store.Refresh(); err != nil {
		return nil, err
	}
	a.turn++
	dim := store.Dim()

	tp := &turnPool{
		stop:    a.stop,
		start:   time.Now(),
		problem: ProblemFromStore(store),
		order:   store.Order(a.policy),
		shuffle: a.policy == evidence.RandomPerAttempt,
	}
	if a.pool != nil && last != nil {
		tp.boards = FilterPool(a.pool, last.Cell.Index(dim), last.Hit)
	}
	tp.stats.Turn = a.turn
	tp.stats.Reused = len(tp.boards)

	var err error
	if a.threads == 1 {
		err = a.fill(ctx, a.sampler, tp)
	} else {
		err = a.fillParallel(ctx, tp)
	}
	if err != nil {
		return nil, err
	}

	counts := make([]int, dim*dim)
	distinct := make(map[uint64]struct{}, len(tp.boards))
	for _, b := range tp.boards {
		for i, ok := b.mask.NextSet(0); ok; i, ok = b.mask.NextSet(i + 1) {
			counts[i]++
		}
		distinct[b.fingerprint()] = struct{}{}
	}
	pm := NewProbabilityMap(dim, counts, len(tp.boards), store.Hits())

	a.pool = tp.boards
	tp.stats.Distinct = len(distinct)
	tp.stats.Elapsed = time.Since(tp.start)
	a.last = tp.stats
	a.metrics.turnDone(tp.stats.Drawn, tp.stats.Reused, tp.stats.Elapsed)

	logger.Debug().Int("turn", a.turn).Int("reused", tp.stats.Reused).
		Int("drawn", tp.stats.Drawn).Int("attempts", tp.stats.Attempts).
		Int("distinct", tp.stats.Distinct).Dur("elapsed", tp.stats.Elapsed).
		Msg("turn-sampled")
	if e := logger.Trace(); e.Enabled() {
		e.Msg(pm.String())
	}
	if a.logStream != nil {
		a.writeLog(ctx, store, last, pm)
	}
	return pm, nil
}

// fill draws boards into tp until the stopping condition holds. Under a time
// budget the turn deadline only applies once the pool has a board in it.
func (a *Aggregator) fill(ctx context.Context, s *Sampler, tp *turnPool) error {
	turnCtx := ctx
	if tp.stop.Kind == StopTimeBudget {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithDeadline(ctx, tp.start.Add(tp.stop.Budget))
		defer cancel()
	}
	for {
		n, done := tp.status()
		if done {
			return nil
		}
		dctx := turnCtx
		if n == 0 {
			dctx = ctx
		}
		b, st, err := s.Draw(dctx, tp.problem, tp.order, tp.shuffle)
		tp.add(b, st)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if turnCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return err
		}
	}
}

func (a *Aggregator) fillParallel(ctx context.Context, tp *turnPool) error {
	if len(a.workers) != a.threads {
		a.workers = make([]*Sampler, a.threads)
		for t := range a.workers {
			a.workers[t] = a.sampler.Fork()
		}
	}
	g, gctx := errgroup.WithContext(ctx)
	for t := range a.threads {
		w := a.workers[t]
		g.Go(func() error {
			return a.fill(gctx, w, tp)
		})
	}
	return g.Wait()
}

func (a *Aggregator) writeLog(ctx context.Context, store *evidence.Store, last *Probe, pm *ProbabilityMap) {
	logger := zerolog.Ctx(ctx)
	lt := LogTurn{
		Turn:       a.last.Turn,
		Reused:     a.last.Reused,
		Drawn:      a.last.Drawn,
		Attempts:   a.last.Attempts,
		Distinct:   a.last.Distinct,
		Candidates: store.CandidateCounts(),
	}
	if last != nil {
		lt.LastProbe = last.Cell.Coords()
		lt.LastHit = last.Hit
	}
	pm.Each(func(c board.Cell, p float64) bool {
		lt.Top = append(lt.Top, LogCell{Cell: c.Coords(), P: p})
		return true
	})
	sort.SliceStable(lt.Top, func(i, j int) bool { return lt.Top[i].P > lt.Top[j].P })
	if len(lt.Top) > logTopCells {
		lt.Top = lt.Top[:logTopCells]
	}
	out, err := yaml.Marshal([]LogTurn{lt})
	if err != nil {
		logger.Error().Err(err).Msg("marshalling log")
		return
	}
	if _, err := a.logStream.Write(out); err != nil {
		logger.Error().Err(err).Msg("writing log")
	}
}
