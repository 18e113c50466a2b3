package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/domino14/salvo/evidence"
	"github.com/domino14/salvo/montecarlo"
)

const (
	ConfigDim         = "dim"
	ConfigShips       = "ships"
	ConfigOrdering    = "ordering"
	ConfigTermination = "termination"
	ConfigStepTimeout = "step-timeout"
	ConfigMaxAttempts = "max-attempts"
	ConfigThreads     = "threads"
	ConfigSeed        = "seed"
	ConfigSampleLog   = "sample-log"
	ConfigDebug       = "debug"
	ConfigLogJSON     = "log-json"
	ConfigFile        = "config"
)

const envPrefix = "SALVO"

var ErrBadSettings = errors.New("invalid settings")

var validate = validator.New()

// Config layers command-line flags over SALVO_* environment variables over
// an optional salvo.yaml over the defaults.
type Config struct {
	*viper.Viper
}

func DefaultConfig() *Config {
	v := viper.New()
	v.SetDefault(ConfigDim, 10)
	v.SetDefault(ConfigShips, "2,3,3,4,5")
	v.SetDefault(ConfigOrdering, evidence.MostConstrainedFirst.String())
	v.SetDefault(ConfigTermination, montecarlo.FixedCount(montecarlo.DefaultSampleCount).String())
	v.SetDefault(ConfigStepTimeout, time.Duration(0))
	v.SetDefault(ConfigMaxAttempts, 0)
	v.SetDefault(ConfigThreads, 1)
	v.SetDefault(ConfigSeed, "")
	v.SetDefault(ConfigSampleLog, "")
	v.SetDefault(ConfigDebug, false)
	v.SetDefault(ConfigLogJSON, false)
	return &Config{Viper: v}
}

// AddFlags registers the configuration flags on fs.
func AddFlags(fs *pflag.FlagSet) {
	fs.Int(ConfigDim, 10, "board dimension")
	fs.String(ConfigShips, "2,3,3,4,5", "comma-separated ship lengths")
	fs.String(ConfigOrdering, evidence.MostConstrainedFirst.String(),
		"ship ordering: most-constrained-first or random-per-attempt")
	fs.String(ConfigTermination, montecarlo.FixedCount(montecarlo.DefaultSampleCount).String(),
		"when a turn stops sampling: fixed-count:N or time-budget:DURATION")
	fs.Duration(ConfigStepTimeout, 0, "per-ship placement budget for the time-bounded sampler (0 = off)")
	fs.Uint(ConfigMaxAttempts, 0, "sampling attempts per board before giving up (0 = unbounded)")
	fs.Int(ConfigThreads, 1, "sampling goroutines per turn")
	fs.String(ConfigSeed, "", "base64-encoded 32-byte random seed")
	fs.String(ConfigSampleLog, "", "append a YAML record of every sampled turn to this file")
	fs.Bool(ConfigDebug, false, "debug logging")
	fs.Bool(ConfigLogJSON, false, "log JSON instead of console output")
	fs.String(ConfigFile, "", "config file (default ./salvo.yaml if present)")
}

// Bind wires fs and the environment into c and reads the config file, if
// any.
func (c *Config) Bind(fs *pflag.FlagSet) error {
	if err := c.BindPFlags(fs); err != nil {
		return err
	}
	c.SetEnvPrefix(envPrefix)
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()

	if path := c.GetString(ConfigFile); path != "" {
		c.SetConfigFile(path)
		return c.ReadInConfig()
	}
	c.SetConfigName("salvo")
	c.SetConfigType("yaml")
	c.AddConfigPath(".")
	if err := c.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return err
		}
	}
	return nil
}

// Load parses args as flags and binds them.
func (c *Config) Load(args []string) error {
	fs := pflag.NewFlagSet("salvo", pflag.ContinueOnError)
	AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.Bind(fs)
}

// Settings is the validated, typed form of the configuration.
type Settings struct {
	Dim         int                          `validate:"gte=2"`
	Ships       []int                        `validate:"min=1,dive,gte=1"`
	Ordering    evidence.OrderingPolicy      `validate:"-"`
	Termination montecarlo.StoppingCondition `validate:"-"`
	StepTimeout time.Duration                `validate:"gte=0"`
	MaxAttempts uint
	Threads     int    `validate:"gte=1,lte=1024"`
	Seed        []byte `validate:"omitempty,len=32"`
	SampleLog   string
}

func DefaultSettings() Settings {
	return Settings{
		Dim:         10,
		Ships:       []int{2, 3, 3, 4, 5},
		Ordering:    evidence.MostConstrainedFirst,
		Termination: montecarlo.FixedCount(montecarlo.DefaultSampleCount),
		Threads:     1,
	}
}

// Validate checks field ranges and that the fleet fits the board.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSettings, err)
	}
	for _, l := range s.Ships {
		if l > s.Dim {
			return fmt.Errorf("%w: ship of length %d does not fit a %dx%d board",
				ErrBadSettings, l, s.Dim, s.Dim)
		}
	}
	if total := lo.Sum(s.Ships); total > s.Dim*s.Dim {
		return fmt.Errorf("%w: ships cover %d cells but the board has %d",
			ErrBadSettings, total, s.Dim*s.Dim)
	}
	switch s.Termination.Kind {
	case montecarlo.StopFixedCount:
		if s.Termination.Count < 1 {
			return fmt.Errorf("%w: fixed count must be positive", ErrBadSettings)
		}
	case montecarlo.StopTimeBudget:
		if s.Termination.Budget <= 0 {
			return fmt.Errorf("%w: time budget must be positive", ErrBadSettings)
		}
	}
	return nil
}

// ParseShips reads a comma-separated list of ship lengths.
func ParseShips(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	ships := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		l, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: ship length %q", ErrBadSettings, f)
		}
		ships = append(ships, l)
	}
	return ships, nil
}

// Settings builds and validates the typed settings.
func (c *Config) Settings() (Settings, error) {
	s := Settings{
		Dim:         c.GetInt(ConfigDim),
		StepTimeout: c.GetDuration(ConfigStepTimeout),
		MaxAttempts: c.GetUint(ConfigMaxAttempts),
		Threads:     c.GetInt(ConfigThreads),
		SampleLog:   c.GetString(ConfigSampleLog),
	}
	var err error
	if raw, ok := c.Get(ConfigShips).(string); ok {
		s.Ships, err = ParseShips(raw)
		if err != nil {
			return s, err
		}
	} else {
		s.Ships = c.GetIntSlice(ConfigShips)
	}
	if s.Ordering, err = evidence.ParseOrderingPolicy(c.GetString(ConfigOrdering)); err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadSettings, err)
	}
	if s.Termination, err = montecarlo.ParseStoppingCondition(c.GetString(ConfigTermination)); err != nil {
		return s, fmt.Errorf("%w: %v", ErrBadSettings, err)
	}
	if seed := c.GetString(ConfigSeed); seed != "" {
		if s.Seed, err = base64.StdEncoding.DecodeString(seed); err != nil {
			return s, fmt.Errorf("%w: seed is not base64: %v", ErrBadSettings, err)
		}
	}
	return s, s.Validate()
}

// SanitizedSettings is the configuration as it should appear in logs.
func (c *Config) SanitizedSettings() map[string]any {
	all := c.AllSettings()
	delete(all, ConfigFile)
	if seed, ok := all[ConfigSeed].(string); ok && seed != "" {
		all[ConfigSeed] = "<set>"
	}
	return all
}
