// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// Rule values are logged while files are scanned, and some of them are not
// indicators but credentials that happened to be captured: command lines
// with passwords, HTTP headers with bearer tokens, registry values holding
// keys. The SecureHandler masks those before they reach the log.
//
// # Security Features
//
// The SecureHandler sanitizes:
//   - attributes whose key names a secret (password, authorization, cookie)
//   - string values shaped like credentials (bearer and basic auth, JWTs,
//     AWS access keys, private key blocks, password=... arguments)
//
// Indicators themselves are left alone. File hashes, IP addresses and the
// "token" attribute, which carries a rule field name such as
// processEvent/md5, are never masked.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("value dropped", "token", "urlMonitoringEvent/httpHeader",
//	    "value", "Authorization: Bearer abc") // value is masked
//	slog.SetDefault(logger)
package log
