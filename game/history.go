package game

import (
	"gopkg.in/yaml.v3"
)

// History is the record of a finished or ongoing game.
type History struct {
	ID     string `yaml:"id"`
	Seed   []byte `yaml:"seed,omitempty"`
	Dim    int    `yaml:"dim"`
	Ships  []int  `yaml:"ships,flow"`
	Turns  []Turn `yaml:"turns"`
	Hits   int    `yaml:"hits"`
	Misses int    `yaml:"misses"`
}

func (g *Game) History() History {
	return History{
		ID:     g.id,
		Seed:   g.seed,
		Dim:    g.cat.Dim(),
		Ships:  g.settings.Ships,
		Turns:  g.history,
		Hits:   g.store.NumHits(),
		Misses: g.store.NumMisses(),
	}
}

// LastTurn returns the most recent probe, if there was one.
func (g *Game) LastTurn() (Turn, bool) {
	if len(g.history) == 0 {
		return Turn{}, false
	}
	return g.history[len(g.history)-1], true
}

// ToYAML serializes the history for game logs.
func (h History) ToYAML() ([]byte, error) {
	return yaml.Marshal(h)
}
