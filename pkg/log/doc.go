// Package log provides the structured logging facade used across rescue.
//
// Loggers are leveled, carry Fields, and are passed explicitly to every
// component; there is no package-level default. Internally each logger is a
// slog.Handler feeding a Formatter (text or JSON) and one or more Outputs
// (console, file, null).
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("worker"), log.Str("worker", id))
//	l.Warn("lease expired before return", log.Secret("candidate", c))
//
// # Secrets
//
// Candidate passphrases and the pattern lines they are expanded from are
// logged with Secret. Such values are printed as their length, e.g.
// candidate="<9 bytes>", unless the logger was built with
// WithRevealSecrets(true) or Config.RevealSecrets. Config.Redact hides any
// other key completely.
//
// # Interop
//
// ToStdLogger and RedirectStdLog route *log.Logger output (Pebble) through a
// Logger. Slog returns the underlying *slog.Logger.
package log
