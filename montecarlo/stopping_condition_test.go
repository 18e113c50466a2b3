package montecarlo

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestParseStoppingCondition(t *testing.T) {
	is := is.New(t)
	sc, err := ParseStoppingCondition("fixed-count:1000")
	is.NoErr(err)
	is.Equal(sc, FixedCount(1000))
	is.Equal(sc.String(), "fixed-count:1000")

	sc, err = ParseStoppingCondition("time-budget:250ms")
	is.NoErr(err)
	is.Equal(sc, TimeBudget(250*time.Millisecond))
	is.Equal(sc.String(), "time-budget:250ms")

	for _, bad := range []string{"", "fixed-count", "fixed-count:0", "fixed-count:abc",
		"time-budget:-1s", "time-budget:soon", "forever:1"} {
		_, err = ParseStoppingCondition(bad)
		is.True(errors.Is(err, ErrBadStoppingCondition))
	}
}

func TestStoppingConditionDone(t *testing.T) {
	is := is.New(t)
	fc := FixedCount(3)
	is.True(!fc.Done(2, time.Hour))
	is.True(fc.Done(3, 0))

	tb := TimeBudget(time.Second)
	is.True(!tb.Done(10, 500*time.Millisecond))
	is.True(tb.Done(1, time.Second))
	// an empty pool is never enough, however long it has been.
	is.True(!tb.Done(0, time.Minute))
}
