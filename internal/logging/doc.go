// Package logging provides opt-in file-based logging with rotation for vigil.
// When the --debug flag is set, comprehensive logs are written to ~/.vigil/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), logging is minimal and goes to stderr only.
// While the live event feed owns the terminal, logs go to file exclusively
// so feed output never interleaves with log lines.
package logging
