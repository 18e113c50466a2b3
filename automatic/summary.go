package automatic

import (
	"fmt"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"gopkg.in/yaml.v3"

	"github.com/domino14/salvo/stats"
)

const (
	summaryConfidence = 95
	histogramBins     = 12
	histogramWidth    = 50
)

// Summary describes the turn counts of a batch of trials.
type Summary struct {
	RunID     string    `yaml:"run_id,omitempty"`
	Games     int       `yaml:"games"`
	MeanTurns float64   `yaml:"mean_turns"`
	StdevTurn float64   `yaml:"stdev_turns"`
	MinTurns  int       `yaml:"min_turns"`
	MaxTurns  int       `yaml:"max_turns"`
	CI95      []float64 `yaml:"ci95,flow"`
	MeanMs    float64   `yaml:"mean_elapsed_ms"`

	turns []float64
}

// accumulator folds trial results into a Summary.
type accumulator struct {
	turns   stats.Statistic
	elapsed stats.Statistic
	raw     []float64
}

func (a *accumulator) push(r TrialResult) {
	a.turns.Push(float64(r.Turns))
	a.elapsed.Push(float64(r.Elapsed.Milliseconds()))
	a.raw = append(a.raw, float64(r.Turns))
}

func (a *accumulator) summary(runID string) Summary {
	s := Summary{RunID: runID, Games: a.turns.Iterations(), turns: a.raw}
	if s.Games == 0 {
		return s
	}
	lo, hi := a.turns.ConfidenceInterval(summaryConfidence)
	s.MeanTurns = a.turns.Mean()
	s.StdevTurn = a.turns.Stdev()
	s.MinTurns = int(a.turns.Min())
	s.MaxTurns = int(a.turns.Max())
	s.CI95 = []float64{lo, hi}
	s.MeanMs = a.elapsed.Mean()
	return s
}

func (s Summary) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// Histogram buckets the turn counts. It is empty for summaries read back
// from YAML.
func (s Summary) Histogram() histogram.Histogram {
	return histogram.Hist(histogramBins, s.turns)
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Games played: %d\n", s.Games)
	if s.Games == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, "Turns: mean %.3f  stdev %.3f  min %d  max %d\n",
		s.MeanTurns, s.StdevTurn, s.MinTurns, s.MaxTurns)
	fmt.Fprintf(&sb, "%d%% confidence: [%.3f, %.3f]\n", summaryConfidence, s.CI95[0], s.CI95[1])
	fmt.Fprintf(&sb, "Mean time per game: %.1f ms\n", s.MeanMs)
	if len(s.turns) > 1 && s.MaxTurns > s.MinTurns {
		sb.WriteString("\n")
		if err := histogram.Fprint(&sb, s.Histogram(), histogram.Linear(histogramWidth)); err != nil {
			fmt.Fprintf(&sb, "(no histogram: %v)\n", err)
		}
	}
	return sb.String()
}
