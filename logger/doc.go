// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap. Entries go to stderr by default so that the stdio
// transport keeps stdout to itself.
//
// Usage:
//
//	log, err := logger.New("production", "info", logger.WithOutput("/var/log/scriptbox.log"))
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("Application started")
package logger
