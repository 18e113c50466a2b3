package game

import (
	"fmt"

	"github.com/domino14/salvo/board"
)

type Result int

const (
	Miss Result = iota
	Hit
)

func (r Result) String() string {
	if r == Hit {
		return "HIT"
	}
	return "MISS"
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Turn is one probe and what it found.
type Turn struct {
	Number int        `json:"turn" yaml:"turn"`
	Cell   board.Cell `json:"-" yaml:"-"`
	Coords string     `json:"cell" yaml:"cell"`
	Result Result     `json:"result" yaml:"result"`
	// Sunk names the ship this probe finished off, if any.
	Sunk string `json:"sunk,omitempty" yaml:"sunk,omitempty"`
	// P is the probability the map gave the cell; -1 for a manual probe.
	P       float64 `json:"p" yaml:"p"`
	Samples int     `json:"samples,omitempty" yaml:"samples,omitempty"`
}

func (t Turn) String() string {
	s := fmt.Sprintf("%d. %s %v", t.Number, t.Coords, t.Result)
	if t.P >= 0 {
		s += fmt.Sprintf(" (%.1f%%)", 100*t.P)
	}
	if t.Sunk != "" {
		s += " sunk " + t.Sunk
	}
	return s
}
