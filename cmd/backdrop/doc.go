// Package main is the backdrop server.
//
// backdrop keeps a sqlite cache of photo and video metadata for a set of
// watched directories. On start it:
//
//  1. Loads configuration from the environment and the settings file
//  2. Opens and migrates the cache database
//  3. Initializes libvips and checks for ffprobe
//  4. Builds the extraction chains, hasher and load pipeline
//  5. Starts the watcher, which scans every root once and then follows
//     filesystem events
//  6. Serves the admin API, health probes and /metrics
//
// SIGINT or SIGTERM stops the HTTP server, then the watcher. Dispatches that
// are already running are given the shutdown timeout to finish before the
// database is closed.
package main
