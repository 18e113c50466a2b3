package montecarlo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type StoppingKind int

const (
	// StopFixedCount ends a turn once the pool holds Count boards.
	StopFixedCount StoppingKind = iota
	// StopTimeBudget ends a turn once Budget has elapsed, as long as the
	// pool holds at least one board.
	StopTimeBudget
)

const DefaultSampleCount = 1000

var ErrBadStoppingCondition = errors.New("bad stopping condition")

// StoppingCondition decides when a turn has sampled enough.
type StoppingCondition struct {
	Kind   StoppingKind
	Count  int
	Budget time.Duration
}

func FixedCount(n int) StoppingCondition {
	return StoppingCondition{Kind: StopFixedCount, Count: n}
}

func TimeBudget(d time.Duration) StoppingCondition {
	return StoppingCondition{Kind: StopTimeBudget, Budget: d}
}

// ParseStoppingCondition reads "fixed-count:N" or "time-budget:T", where T
// is a Go duration such as "250ms".
func ParseStoppingCondition(s string) (StoppingCondition, error) {
	kind, arg, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return StoppingCondition{}, fmt.Errorf("%w: %q (want kind:value)", ErrBadStoppingCondition, s)
	}
	switch kind {
	case "fixed-count":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return StoppingCondition{}, fmt.Errorf("%w: count must be a positive integer, got %q",
				ErrBadStoppingCondition, arg)
		}
		return FixedCount(n), nil
	case "time-budget":
		d, err := time.ParseDuration(arg)
		if err != nil || d <= 0 {
			return StoppingCondition{}, fmt.Errorf("%w: budget must be a positive duration, got %q",
				ErrBadStoppingCondition, arg)
		}
		return TimeBudget(d), nil
	}
	return StoppingCondition{}, fmt.Errorf("%w: unknown kind %q", ErrBadStoppingCondition, kind)
}

func (sc StoppingCondition) String() string {
	if sc.Kind == StopTimeBudget {
		return "time-budget:" + sc.Budget.String()
	}
	return "fixed-count:" + strconv.Itoa(sc.Count)
}

// Done reports whether a pool of n boards, sampled for elapsed so far this
// turn, is enough.
func (sc StoppingCondition) Done(n int, elapsed time.Duration) bool {
	switch sc.Kind {
	case StopTimeBudget:
		return n > 0 && elapsed >= sc.Budget
	default:
		return n >= sc.Count
	}
}
