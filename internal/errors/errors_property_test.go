//go:build property

package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCollectorProperties validates failure collection under concurrency
func TestCollectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent adds are never lost", prop.ForAll(
		func(goroutines int, perGoroutine int) bool {
			c := NewCollector()

			var wg sync.WaitGroup
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						c.Add(fmt.Sprintf("file_%d_%d.js", id, i), stderrors.New("boom"))
					}
				}(g)
			}
			wg.Wait()

			return c.Len() == goroutines*perGoroutine
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 20),
	))

	properties.Property("failures are sorted by file", prop.ForAll(
		func(files []string) bool {
			c := NewCollector()
			for _, f := range files {
				c.Add(f, stderrors.New("boom"))
			}

			failures := c.Failures()
			if len(failures) != len(files) {
				return false
			}
			return sort.SliceIsSorted(failures, func(i, j int) bool {
				return failures[i].File < failures[j].File
			})
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("nil errors are ignored", prop.ForAll(
		func(files []string) bool {
			c := NewCollector()
			for _, f := range files {
				c.Add(f, nil)
			}
			return !c.HasErrors() && c.Err() == nil
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("Err wraps the first failure", prop.ForAll(
		func(files []string) bool {
			if len(files) == 0 {
				return true
			}
			sentinel := stderrors.New("sentinel")
			c := NewCollector()
			for _, f := range files {
				c.Add(f, sentinel)
			}
			return stderrors.Is(c.Err(), sentinel)
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
