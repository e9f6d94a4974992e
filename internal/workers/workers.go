package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvIngestWorkers overrides the computed worker count for ingestion pools.
const EnvIngestWorkers = "INGEST_WORKERS"

// EnvCodecWorkers overrides the number of concurrent codec calls.
const EnvCodecWorkers = "CODEC_WORKERS"

// Count returns the optimal number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks
//
// The limit parameter caps the worker count to prevent resource exhaustion.
// Use 0 for no limit.
//
// Can be overridden with the INGEST_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	return CountWithEnv(EnvIngestWorkers, multiplier, limit)
}

// CountWithEnv is Count with a caller-chosen override variable.
func CountWithEnv(envKey string, multiplier float64, limit int) int {
	if override := os.Getenv(envKey); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// ForCodec returns the number of concurrent codec calls (1 per CPU), with
// CODEC_WORKERS as the override.
func ForCodec(limit int) int {
	return CountWithEnv(EnvCodecWorkers, 1.0, limit)
}
