package logrouter

import (
	"runtime"
	"strings"

	"github.com/bft-labs/gest/pkg/log"
)

// Logger returns a log.Logger that stamps records with module and with the
// calling function and line.
func (r *Router) Logger(module string) log.Logger {
	return &moduleLogger{router: r, module: module}
}

type moduleLogger struct {
	router *Router
	module string
}

func (l *moduleLogger) Debug(msg string, fields ...log.Field) {
	l.emit(SeverityDebug, msg, fields)
}

func (l *moduleLogger) Info(msg string, fields ...log.Field) {
	l.emit(SeverityInfo, msg, fields)
}

func (l *moduleLogger) Warn(msg string, fields ...log.Field) {
	l.emit(SeverityWarning, msg, fields)
}

func (l *moduleLogger) Error(msg string, fields ...log.Field) {
	l.emit(SeverityError, msg, fields)
}

// emit is always called directly from one of the level methods, so the
// user's frame is three above runtime.Caller's own.
func (l *moduleLogger) emit(sev Severity, msg string, fields []log.Field) {
	if !l.router.Enabled(sev) {
		return
	}
	plain, detail := log.Split(fields)
	l.router.Emit(Record{
		Time:     l.router.now(),
		Severity: sev,
		Source:   callerSource(l.module, 3),
		Message:  msg,
		Fields:   plain,
		Detail:   detail,
	})
}

func callerSource(module string, skip int) Source {
	src := Source{Module: module}
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return src
	}
	src.File = file
	src.Line = line
	if fn := runtime.FuncForPC(pc); fn != nil {
		src.Function = shortFuncName(fn.Name())
	}
	return src
}

// shortFuncName trims the import path and package from a runtime function
// name: "github.com/x/pkg.(*T).Run" becomes "(*T).Run".
func shortFuncName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
