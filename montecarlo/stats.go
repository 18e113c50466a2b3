package montecarlo

import (
	"fmt"
	"time"
)

// TurnStats reports on one turn's sampling.
type TurnStats struct {
	Turn int
	// Reused boards survived from the previous turn's pool.
	Reused int
	// Drawn boards were freshly sampled this turn.
	Drawn    int
	Attempts int
	Failures int
	Repairs  int
	// Distinct counts the different boards in the pool.
	Distinct int
	Elapsed  time.Duration
}

func (ts *TurnStats) add(st DrawStats) {
	ts.Attempts += st.Attempts
	ts.Failures += st.Failures
	ts.Repairs += st.Repairs
}

// PoolSize is the number of boards behind the turn's map.
func (ts TurnStats) PoolSize() int {
	return ts.Reused + ts.Drawn
}

// AcceptRate is the share of attempts that produced a board.
func (ts TurnStats) AcceptRate() float64 {
	if ts.Attempts == 0 {
		return 0
	}
	return float64(ts.Drawn) / float64(ts.Attempts)
}

func (ts TurnStats) String() string {
	return fmt.Sprintf("turn %d: %d boards (%d reused, %d drawn, %d distinct), %d attempts, %d repairs, %v",
		ts.Turn, ts.PoolSize(), ts.Reused, ts.Drawn, ts.Distinct, ts.Attempts, ts.Repairs, ts.Elapsed)
}
