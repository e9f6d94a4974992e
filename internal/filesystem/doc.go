/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Media libraries frequently live on network mounts. Stat and Open calls that hit
ESTALE (errno 116) are retried with exponential backoff; every other error is
returned immediately.

# Usage

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}
	defer file.Close()

# Retry Behavior

Defaults: 3 retries, 50ms initial backoff, 500ms maximum backoff.

# Metrics

Operation and retry metrics are reported through an Observer installed with
SetObserver. The metrics package provides the Prometheus implementation; until
one is installed recording is a no-op. Paths are labeled by volume through a
VolumeResolver: watch roots resolve to "media", the data and cache
directories to their own labels.
*/
package filesystem
