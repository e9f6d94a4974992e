// Package memory keeps backdrop inside its container memory limit.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT (bytes, usually from
// the Kubernetes Downward API) scaled by MEMORY_RATIO (default 0.80). An
// explicit GOMEMLIMIT always wins. The headroom is for libvips and ffprobe,
// which allocate outside the Go heap.
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// A [Monitor] samples heap usage and, above the critical water mark, makes
// [Monitor.Wait] block so scan workers stop decoding new files until usage
// drops below the resume mark. It satisfies indexer.Gate.
package memory
