// Package middleware provides the HTTP middleware wrapped around the API
// router: a W3C Extended Log Format access log, Prometheus request metrics
// labelled by route template, and gzip compression of JSON responses.
package middleware
