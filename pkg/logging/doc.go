// Package logging provides structured logging for apiprobe on top of the
// standard slog package.
//
// # Log Levels
//   - **Debug**: Detailed information for debugging, including discovery and
//     token endpoint traffic (never token values)
//   - **Info**: Notable events such as a completed login
//   - **Warn**: Recoverable problems, e.g. tokens that could not be persisted
//   - **Error**: Failures
//
// # Usage
//
//	level, err := logging.ParseLevel("debug")
//	logger := logging.InitForCLI(level, os.Stderr)
//
//	// Pass the logger to components that accept one
//	client := oauth.NewClient(oauth.WithLogger(logger))
//
//	// Or use the subsystem helpers
//	logging.Debug("CLI", "Loaded configuration from %s", path)
//	logging.Error("CLI", err, "Login failed")
//
// Output goes to stderr by default so that stdout stays clean for command
// output such as `apiprobe auth token`.
package logging
