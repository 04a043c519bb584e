// Package logging provides structured logging for the SWS bridge.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Formats
//
//   - json: machine-parsable output for production
//   - text: slog key=value output
//   - console: coloured human-readable output for the bench
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text, console
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "./logs/swsbridge.log"
//	    max_size: 10     # megabytes before rotation
//	    max_backups: 5
//	    max_age: 28      # days
//	    compress: false
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("controller connected", "connection", url)
//	logger.Error("catalog stream unterminated", "error", err)
package logging
