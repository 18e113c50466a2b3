package automatic

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"lukechampine.com/frand"

	"github.com/domino14/salvo/game"
)

const seedFileHeader = "# salvo trial seeds, base64 URL-safe, 32 bytes each"

// Seed fixes the hidden fleet and every sampling decision of one trial.
type Seed [game.SeedLength]byte

func (s Seed) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// GenerateSeeds draws n seeds from the system generator.
func GenerateSeeds(n int) []Seed {
	seeds := make([]Seed, n)
	for i := range seeds {
		frand.Read(seeds[i][:])
	}
	return seeds
}

// WriteSeeds writes one seed per line below a comment header.
func WriteSeeds(w io.Writer, seeds []Seed) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, seedFileHeader); err != nil {
		return err
	}
	for i, s := range seeds {
		if _, err := fmt.Fprintln(bw, s); err != nil {
			return fmt.Errorf("writing seed %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func SaveSeeds(seeds []Seed, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating seed file: %w", err)
	}
	if err := WriteSeeds(f, seeds); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// parseSeed accepts URL-safe base64 as written by WriteSeeds, and standard
// base64 as taken by the --seed flag.
func parseSeed(line string) (Seed, error) {
	var s Seed
	decoded, err := base64.RawURLEncoding.DecodeString(line)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(line)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(line)
		}
		if err != nil {
			return s, err
		}
	}
	if len(decoded) != game.SeedLength {
		return s, fmt.Errorf("%w: got %d bytes", game.ErrBadSeed, len(decoded))
	}
	copy(s[:], decoded)
	return s, nil
}

// ReadSeeds reads seeds one per line, skipping blanks and # comments.
func ReadSeeds(r io.Reader) ([]Seed, error) {
	var seeds []Seed
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s, err := parseSeed(line)
		if err != nil {
			return nil, fmt.Errorf("seed at line %d: %w", lineNum, err)
		}
		seeds = append(seeds, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seeds: %w", err)
	}
	return seeds, nil
}

func LoadSeeds(path string) ([]Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()
	return ReadSeeds(f)
}
