/*
Package workers sizes worker pools from GOMAXPROCS and bounds concurrent work.

Go 1.19+ sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU
still reports the host. Pool sizes derived here therefore respect cgroup
limits:

	walkers := workers.ForIO(16)   // 2 per CPU, at most 16
	codecs := workers.ForCodec(8)  // 1 per CPU, at most 8

# Environment Variable Override

INGEST_WORKERS overrides Count, ForCPU, ForIO and ForMixed. CODEC_WORKERS
overrides ForCodec. Overrides are still capped by the limit argument.

# Limiter

Limiter is a counting semaphore. The extraction chain holds one slot per
codec call so a burst of file events cannot start unbounded cgo work:

	lim := workers.NewLimiter(workers.ForCodec(8))
	err := lim.Do(ctx, func() error {
	    return decode(path)
	})
*/
package workers
