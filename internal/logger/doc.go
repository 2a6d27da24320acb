// Package logger wraps zap with a global sugared logger and context helpers.
//
// Services take the logger from their context (WithName, WithKV) and log
// through the package functions (InfoKV, WarnKV, ...). Configure switches the
// output format and adds a JSON log file for every logger at once, including
// loggers already stored in contexts.
package logger
