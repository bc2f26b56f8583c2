// Package logger wraps zap with the helpers the updater uses everywhere:
//   - a console encoder writing to stdout,
//   - a logger carried in context.Context (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level changes,
//   - printf and key-value convenience functions (Infof, ErrorKV, ...).
//
// Components never reach for a package-level logger directly. They log through
// the context they were given, and the global instance only backs contexts
// that carry no logger at all.
package logger
