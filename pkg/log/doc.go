// Package log defines the logging facade shared by gest components.
//
// Components accept a Logger and never reach for a global. In the running
// application the Logger is produced by logrouter.Router.Logger, which turns
// each call into a record fanned out to the configured sinks:
//
//	router := logrouter.New()
//	logger := router.Logger("camera")
//	logger.Info("camera initialized", log.Int("width", 1280))
//
// Use Detail or Stack for diagnostic context that belongs in the error log
// file only:
//
//	logger.Error("run loop panicked", log.Err(err), log.Stack())
package log
