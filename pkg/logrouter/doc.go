// Package logrouter multiplexes log records to console and rotating file
// sinks.
//
// Every sink has its own minimum severity, format template and, for file
// sinks, rotation threshold, retention count and compression flag. Rotation
// is checked synchronously inside Emit before a record is written, so a
// record is never split across files.
//
// # Usage
//
//	router := logrouter.New()
//	err := router.Configure([]logrouter.SinkSpec{
//	    {Target: logrouter.TargetConsole, MinSeverity: logrouter.SeverityInfo, Color: true},
//	    {Target: logrouter.TargetFile, Dir: "logs", Prefix: "gest", MaxBytes: 10 << 20, Retention: 5, Compress: true},
//	    {Target: logrouter.TargetErrorFile, Dir: "logs", Prefix: "gest_errors", Backtrace: true},
//	})
//	logger := router.Logger("main")
//	logger.Info("logging configured")
//
// # File layout
//
// File sinks write Dir/Prefix_<timestamp>.log. A rotated file is optionally
// gzipped to .log.gz, and the oldest rotated files beyond Retention are
// deleted. Retention also applies to files left by earlier sessions.
//
// # Templates
//
// Format templates use {field} and {field:spec} placeholders: time (with a
// YYYY-MM-DD HH:mm:ss.SSS style pattern), level, name, module, function,
// line, file, message and extra. Non-time fields accept an alignment such as
// {level: <8}. Structured fields are appended as key=value pairs unless the
// template places them with {extra}.
package logrouter
