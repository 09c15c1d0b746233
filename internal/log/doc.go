// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The SecureHandler masks:
//   - attributes whose key names a secret (authorization, token, credential, ...)
//   - values that are secrets by shape (bearer values, JWTs, private keys)
//   - GitHub tokens and credential query parameters embedded in messages,
//     URLs and errors
//
// Even in verbose mode, sensitive values are masked so crawl logs can be
// published as CI artifacts.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Info("search request", "authorization", "Bearer ghp_...") // masked
package log
