package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/logrouter"
	"github.com/bft-labs/gest/pkg/resource"
)

type loggedRecord struct {
	level  string
	module string
	msg    string
	fields map[string]any
}

// recordingRouter implements LogRouter and keeps every record in memory.
type recordingRouter struct {
	mu           sync.Mutex
	records      []loggedRecord
	configured   [][]logrouter.SinkSpec
	configureErr error
}

func (r *recordingRouter) Configure(specs []logrouter.SinkSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.configureErr != nil {
		return r.configureErr
	}
	r.configured = append(r.configured, specs)
	return nil
}

func (r *recordingRouter) Logger(module string) log.Logger {
	return &recordingLogger{router: r, module: module}
}

func (r *recordingRouter) add(level, module, msg string, fields []log.Field) {
	m := map[string]any{}
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	r.mu.Lock()
	r.records = append(r.records, loggedRecord{level: level, module: module, msg: msg, fields: m})
	r.mu.Unlock()
}

func (r *recordingRouter) Records() []loggedRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]loggedRecord(nil), r.records...)
}

func (r *recordingRouter) Find(level, msg string) []loggedRecord {
	var out []loggedRecord
	for _, rec := range r.Records() {
		if rec.level == level && rec.msg == msg {
			out = append(out, rec)
		}
	}
	return out
}

type recordingLogger struct {
	router *recordingRouter
	module string
}

func (l *recordingLogger) Debug(msg string, fields ...log.Field) {
	l.router.add("debug", l.module, msg, fields)
}
func (l *recordingLogger) Info(msg string, fields ...log.Field) {
	l.router.add("info", l.module, msg, fields)
}
func (l *recordingLogger) Warn(msg string, fields ...log.Field) {
	l.router.add("warn", l.module, msg, fields)
}
func (l *recordingLogger) Error(msg string, fields ...log.Field) {
	l.router.add("error", l.module, msg, fields)
}

// staticSettings implements Settings.
type staticSettings struct {
	specs []logrouter.SinkSpec
	err   error
}

func (s staticSettings) Sinks() ([]logrouter.SinkSpec, error) { return s.specs, s.err }

func consoleSettings() staticSettings {
	return staticSettings{specs: []logrouter.SinkSpec{{Target: logrouter.TargetConsole}}}
}

// callLog records acquire/release calls across resources in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *callLog) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callLog) Count(prefix string) int {
	n := 0
	for _, s := range c.Calls() {
		if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeResource struct {
	name       string
	calls      *callLog
	acquireErr error
	releaseErr error
	panicMsg   string
}

func (f *fakeResource) Name() string { return f.name }

func (f *fakeResource) Acquire(context.Context) (resource.Info, error) {
	f.calls.add("acquire:" + f.name)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return resource.Info{"device": f.name}, nil
}

func (f *fakeResource) Release(context.Context) error {
	f.calls.add("release:" + f.name)
	return f.releaseErr
}

func newResources(calls *callLog, names ...string) []resource.Resource {
	out := make([]resource.Resource, len(names))
	for i, n := range names {
		out[i] = &fakeResource{name: n, calls: calls}
	}
	return out
}

var errDeviceBusy = errors.New("device busy")
