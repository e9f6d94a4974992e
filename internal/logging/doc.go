// Package logging provides a simple leveled logging interface for backdrop.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level comes from DEBUG=true or LOG_LEVEL and can be changed at runtime
// with SetLevel. EnableFile additionally writes every line to a rotating
// file (lumberjack), which is how LOG_FILE is honored.
package logging
