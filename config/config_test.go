package config

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/domino14/salvo/evidence"
	"github.com/domino14/salvo/montecarlo"
)

func TestDefaults(t *testing.T) {
	is := is.New(t)
	t.Chdir(t.TempDir())
	c := DefaultConfig()
	is.NoErr(c.Load(nil))
	s, err := c.Settings()
	is.NoErr(err)
	is.Equal(s.Dim, 10)
	is.Equal(s.Ships, []int{2, 3, 3, 4, 5})
	is.Equal(s.Ordering, evidence.MostConstrainedFirst)
	is.Equal(s.Termination, montecarlo.FixedCount(1000))
	is.Equal(s.Threads, 1)
	is.Equal(s.MaxAttempts, uint(0))
	is.Equal(len(s.Seed), 0)
}

func TestFlagsOverrideEnv(t *testing.T) {
	is := is.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("SALVO_DIM", "8")
	t.Setenv("SALVO_TERMINATION", "time-budget:200ms")
	c := DefaultConfig()
	is.NoErr(c.Load([]string{"--dim", "6", "--ships", "2, 2,3", "--ordering", "random-per-attempt"}))
	s, err := c.Settings()
	is.NoErr(err)
	is.Equal(s.Dim, 6)
	is.Equal(s.Ships, []int{2, 2, 3})
	is.Equal(s.Ordering, evidence.RandomPerAttempt)
	is.Equal(s.Termination, montecarlo.TimeBudget(200*time.Millisecond))
}

func TestConfigFile(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "salvo.yaml")
	is.NoErr(os.WriteFile(path, []byte("dim: 5\nships: [2, 3]\nthreads: 2\n"), 0o644))
	t.Chdir(dir)

	c := DefaultConfig()
	is.NoErr(c.Load(nil))
	s, err := c.Settings()
	is.NoErr(err)
	is.Equal(s.Dim, 5)
	is.Equal(s.Ships, []int{2, 3})
	is.Equal(s.Threads, 2)
}

func TestSeed(t *testing.T) {
	is := is.New(t)
	t.Chdir(t.TempDir())
	seed := make([]byte, 32)
	seed[3] = 9
	c := DefaultConfig()
	is.NoErr(c.Load([]string{"--seed", base64.StdEncoding.EncodeToString(seed)}))
	s, err := c.Settings()
	is.NoErr(err)
	is.Equal(s.Seed, seed)
	is.Equal(c.SanitizedSettings()[ConfigSeed], "<set>")

	c = DefaultConfig()
	is.NoErr(c.Load([]string{"--seed", base64.StdEncoding.EncodeToString(seed[:8])}))
	_, err = c.Settings()
	is.True(errors.Is(err, ErrBadSettings))
}

func TestValidate(t *testing.T) {
	is := is.New(t)
	cases := []struct {
		name string
		mod  func(*Settings)
	}{
		{"dim too small", func(s *Settings) { s.Dim = 1 }},
		{"no ships", func(s *Settings) { s.Ships = nil }},
		{"zero-length ship", func(s *Settings) { s.Ships = []int{2, 0} }},
		{"ship longer than board", func(s *Settings) { s.Ships = []int{11} }},
		{"fleet too big", func(s *Settings) { s.Dim = 3; s.Ships = []int{3, 3, 3, 1} }},
		{"no threads", func(s *Settings) { s.Threads = 0 }},
		{"zero count", func(s *Settings) { s.Termination = montecarlo.FixedCount(0) }},
		{"negative step timeout", func(s *Settings) { s.StepTimeout = -time.Second }},
	}
	is.NoErr(DefaultSettings().Validate())
	wide := DefaultSettings()
	wide.Dim = 40
	is.NoErr(wide.Validate())
	for _, tc := range cases {
		s := DefaultSettings()
		tc.mod(&s)
		err := s.Validate()
		is.True(errors.Is(err, ErrBadSettings)) // tc.name
	}
}

func TestBadStrings(t *testing.T) {
	is := is.New(t)
	t.Chdir(t.TempDir())
	for _, args := range [][]string{
		{"--ships", "2,x"},
		{"--ordering", "biggest-first"},
		{"--termination", "fixed-count:lots"},
	} {
		c := DefaultConfig()
		is.NoErr(c.Load(args))
		_, err := c.Settings()
		is.True(errors.Is(err, ErrBadSettings))
	}
}
