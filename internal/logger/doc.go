// Package logger wraps zap for the deployer:
//   - a global sugared logger writing line-oriented console output to stdout,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled helpers (Infof, WarnKV, ErrorKV, ...).
//
// Every deployment component receives a context and logs through the logger
// stored in it, so the run id and component name follow each line.
package logger
