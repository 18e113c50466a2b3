package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/matryer/is"
)

func TestLoadOnce(t *testing.T) {
	is := is.New(t)
	Clear()
	calls := 0
	load := func() (*[]int, error) {
		calls++
		return &[]int{1, 2, 3}, nil
	}
	var wg sync.WaitGroup
	results := make([]*[]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Load("k", load)
			is.NoErr(err)
			results[i] = v
		}()
	}
	wg.Wait()
	is.Equal(calls, 1)
	for _, r := range results {
		is.True(r == results[0])
	}
	is.Equal(GlobalObjectCache.len(), 1)
}

func TestFailedLoadNotCached(t *testing.T) {
	is := is.New(t)
	Clear()
	boom := errors.New("boom")
	_, err := Load("k", func() (int, error) { return 0, boom })
	is.True(errors.Is(err, boom))
	v, err := Load("k", func() (int, error) { return 7, nil })
	is.NoErr(err)
	is.Equal(v, 7)
}
