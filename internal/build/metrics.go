package build

import (
	"sync"
	"time"
)

// FileResult is the outcome of inlining one source file.
type FileResult struct {
	Path string
	// Output is where the rewritten source was written. Empty on failure,
	// in dry runs and when nothing changed in place.
	Output   string
	Matches  int
	Patched  int
	Skipped  int
	Changed  bool
	Duration time.Duration
	Error    error

	// rewritten source, kept only when writing to stdout
	content []byte
}

// RunMetrics tracks the totals of a run
type RunMetrics struct {
	Files         int64
	ChangedFiles  int64
	FailedFiles   int64
	Matches       int64
	Patched       int64
	Skipped       int64
	TotalDuration time.Duration
	mutex         sync.RWMutex
}

// NewRunMetrics creates a new metrics tracker
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{}
}

// Record adds one file result to the totals
func (rm *RunMetrics) Record(result FileResult) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	rm.Files++
	rm.TotalDuration += result.Duration
	rm.Matches += int64(result.Matches)
	rm.Patched += int64(result.Patched)
	rm.Skipped += int64(result.Skipped)

	if result.Error != nil {
		rm.FailedFiles++
		return
	}
	if result.Changed {
		rm.ChangedFiles++
	}
}

// Snapshot returns a copy of the current totals
func (rm *RunMetrics) Snapshot() Summary {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	return Summary{
		Files:         rm.Files,
		ChangedFiles:  rm.ChangedFiles,
		FailedFiles:   rm.FailedFiles,
		Matches:       rm.Matches,
		Patched:       rm.Patched,
		Skipped:       rm.Skipped,
		TotalDuration: rm.TotalDuration,
	}
}

// Summary is the report of a finished run.
type Summary struct {
	Files         int64         `json:"files"`
	ChangedFiles  int64         `json:"changed_files"`
	FailedFiles   int64         `json:"failed_files"`
	Matches       int64         `json:"matches"`
	Patched       int64         `json:"patched"`
	Skipped       int64         `json:"skipped"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	CacheHitRate  float64       `json:"cache_hit_rate"` // 0.0 to 1.0 over the life of the cache
	TotalDuration time.Duration `json:"total_duration"`
	// Elapsed is wall clock time; TotalDuration sums per file work.
	Elapsed time.Duration `json:"elapsed"`
}

// SuccessRate returns the share of files without a hard error as a percentage
func (s Summary) SuccessRate() float64 {
	if s.Files == 0 {
		return 0.0
	}
	return float64(s.Files-s.FailedFiles) / float64(s.Files) * 100.0
}
