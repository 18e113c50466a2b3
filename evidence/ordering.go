package evidence

import (
	"fmt"
	"slices"
	"strings"
)

// OrderingPolicy decides in which order the sampler places ships.
type OrderingPolicy int

const (
	// MostConstrainedFirst places ships with the fewest candidates first.
	// Faster, but biases the samples toward the early ships' choices.
	MostConstrainedFirst OrderingPolicy = iota
	// RandomPerAttempt reshuffles the ship order before every attempt.
	RandomPerAttempt
)

func (o OrderingPolicy) String() string {
	switch o {
	case MostConstrainedFirst:
		return "most-constrained-first"
	case RandomPerAttempt:
		return "random-per-attempt"
	}
	return "unknown"
}

func ParseOrderingPolicy(s string) (OrderingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "most-constrained-first", "mcf", "":
		return MostConstrainedFirst, nil
	case "random-per-attempt", "random":
		return RandomPerAttempt, nil
	}
	return 0, fmt.Errorf("unknown ordering policy %q", s)
}

// Order lists the ships still afloat. For MostConstrainedFirst they are
// sorted by ascending candidate count, ties kept in ship order; otherwise
// they come in ship order and the sampler shuffles them itself.
func (s *Store) Order(policy OrderingPolicy) []int {
	return OrderShips(s.candidates, s.sunk, policy)
}

// OrderShips is the pure form of Store.Order.
func OrderShips[T any](candidates [][]T, sunk []bool, policy OrderingPolicy) []int {
	order := make([]int, 0, len(candidates))
	for ship := range candidates {
		if !sunk[ship] {
			order = append(order, ship)
		}
	}
	if policy == MostConstrainedFirst {
		slices.SortStableFunc(order, func(a, b int) int {
			return len(candidates[a]) - len(candidates[b])
		})
	}
	return order
}
