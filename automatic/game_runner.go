// Package automatic plays many searches back to back without anyone
// watching, and collects how many probes each one took.
package automatic

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/domino14/salvo/config"
	"github.com/domino14/salvo/game"
)

// LogHeader is the first line of every trial log.
var LogHeader = []string{"gameID", "seed", "turns", "hits", "misses", "elapsedMs"}

// TrialResult is the outcome of one game played to the end.
type TrialResult struct {
	GameID  string        `yaml:"game_id"`
	Seed    []byte        `yaml:"seed"`
	Turns   int           `yaml:"turns"`
	Hits    int           `yaml:"hits"`
	Misses  int           `yaml:"misses"`
	Elapsed time.Duration `yaml:"elapsed"`
}

// Record is the result as a row of the trial log.
func (r TrialResult) Record() []string {
	return []string{
		r.GameID,
		base64.RawURLEncoding.EncodeToString(r.Seed),
		strconv.Itoa(r.Turns),
		strconv.Itoa(r.Hits),
		strconv.Itoa(r.Misses),
		strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
	}
}

// GameRunner owns one game and replays it for every job it is handed.
type GameRunner struct {
	game    *game.Game
	logchan chan<- TrialResult
}

// NewGameRunner builds the runner's game. Results of every finished game are
// sent to logchan, if it is not nil.
func NewGameRunner(s config.Settings, logchan chan<- TrialResult, opts ...game.Option) (*GameRunner, error) {
	g, err := game.NewGame(s, opts...)
	if err != nil {
		return nil, err
	}
	return &GameRunner{game: g, logchan: logchan}, nil
}

func (r *GameRunner) Game() *game.Game {
	return r.game
}

// PlayGame hides a new fleet from seed (nil picks a random one) and searches
// until it is sunk.
func (r *GameRunner) PlayGame(ctx context.Context, seed []byte) (TrialResult, error) {
	if err := r.game.Reseed(seed); err != nil {
		return TrialResult{}, err
	}
	start := time.Now()
	turns, err := r.game.RunToCompletion(ctx)
	if err != nil {
		return TrialResult{}, err
	}
	h := r.game.History()
	res := TrialResult{
		GameID:  r.game.ID(),
		Seed:    r.game.Seed(),
		Turns:   turns,
		Hits:    h.Hits,
		Misses:  h.Misses,
		Elapsed: time.Since(start),
	}
	if r.logchan != nil {
		select {
		case r.logchan <- res:
		case <-ctx.Done():
			return res, ctx.Err()
		}
	}
	return res, nil
}
