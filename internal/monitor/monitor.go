// Package monitor logs a periodic heartbeat while a session is active.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/resource"
)

// FieldsFunc supplies the fields attached to each heartbeat record.
type FieldsFunc func() []log.Field

// Monitor runs a heartbeat job on a cron schedule such as "@every 30s".
type Monitor struct {
	schedule string
	logger   log.Logger
	fields   FieldsFunc
	now      func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started time.Time
	beats   atomic.Int64
}

func New(schedule string, logger log.Logger, fields FieldsFunc) *Monitor {
	return &Monitor{schedule: schedule, logger: log.OrNoop(logger), fields: fields, now: time.Now}
}

func (m *Monitor) Name() string { return "monitor" }

func (m *Monitor) Acquire(ctx context.Context) (resource.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{m.logger})))
	if _, err := c.AddFunc(m.schedule, m.Beat); err != nil {
		return nil, fmt.Errorf("heartbeat schedule %q: %w", m.schedule, err)
	}

	m.mu.Lock()
	m.cron = c
	m.started = m.now()
	m.mu.Unlock()
	c.Start()

	return resource.Info{"schedule": m.schedule}, nil
}

// Beat logs one heartbeat. The cron job calls it; it is exported so a
// heartbeat can also be forced.
func (m *Monitor) Beat() {
	n := m.beats.Add(1)

	m.mu.Lock()
	uptime := m.now().Sub(m.started)
	m.mu.Unlock()

	fields := []log.Field{log.Int64("beat", n), log.Duration("uptime", uptime.Round(time.Second))}
	if m.fields != nil {
		fields = append(fields, m.fields()...)
	}
	m.logger.Info("heartbeat", fields...)
}

func (m *Monitor) Beats() int64 { return m.beats.Load() }

// Release stops the schedule and waits for a running beat to finish.
func (m *Monitor) Release(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts log.Logger to cron.Logger.
type cronLogger struct{ l log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), log.Err(err))...)
}

func kvFields(kv []interface{}) []log.Field {
	out := make([]log.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, log.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
