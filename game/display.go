package game

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/domino14/salvo/board"
)

// historyLines is how many recent probes ToDisplayText lists.
const historyLines = 10

func splitSubN(s string, n int) []string {
	sub := ""
	subs := []string{}

	runes := bytes.Runes([]byte(s))
	l := len(runes)
	for i, r := range runes {
		sub = sub + string(r)
		if (i+1)%n == 0 {
			subs = append(subs, sub)
			sub = ""
		} else if (i + 1) == l {
			subs = append(subs, sub)
		}
	}

	return subs
}

func addText(lines []string, row int, hpad int, text string) {
	maxTextSize := 42
	sp := splitSubN(text, maxTextSize)

	for _, chunk := range sp {
		if row >= len(lines) {
			return
		}
		lines[row] = lines[row] + strings.Repeat(" ", hpad) + chunk
		row++
	}
}

// EvidenceText draws what the searcher knows: X for a hit, # for a cell of
// a sunk ship, o for a miss.
func (g *Game) EvidenceText() string {
	return board.GridText(g.cat.Dim(), 1, func(c board.Cell) string {
		idx := c.Index(g.cat.Dim())
		switch {
		case g.store.SunkCells().Test(idx):
			return "#"
		case g.store.Hits().Test(idx):
			return "X"
		case g.store.Misses().Test(idx):
			return "o"
		}
		return "."
	})
}

// ToDisplayText turns the current state of the game into a displayable
// string: the evidence grid with the recent probes beside it.
func (g *Game) ToDisplayText() string {
	bts := strings.Split(g.EvidenceText(), "\n")
	hpadding := 3
	vpadding := 1

	addText(bts, vpadding, hpadding, fmt.Sprintf("Game %s", g.id))
	addText(bts, vpadding+1, hpadding, fmt.Sprintf("Probes: %d (%d hits, %d misses)",
		g.Turns(), g.store.NumHits(), g.store.NumMisses()))
	addText(bts, vpadding+2, hpadding, fmt.Sprintf("Sunk: %d of %d",
		g.store.NumSunk(), g.cat.NumShips()))

	vpadding = 5
	start := max(0, len(g.history)-historyLines)
	for i, t := range g.history[start:] {
		addText(bts, vpadding+i, hpadding, t.String())
	}

	if g.Done() {
		addText(bts, vpadding+historyLines, hpadding, "Fleet is sunk.")
	}
	return strings.Join(bts, "\n")
}
