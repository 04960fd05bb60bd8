// Package journal records lifecycle transitions and session events as
// CloudEvents, one JSON object per line.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/bft-labs/gest/pkg/lifecycle"
	"github.com/bft-labs/gest/pkg/log"
)

const (
	FileName = "lifecycle.jsonl"
	Source   = "gest/lifecycle"

	TypeStateChanged = "gest.lifecycle.state_changed"
	TypeGesture      = "gest.mode.gesture"

	// SessionExtension carries the session id on every event.
	SessionExtension = "gestsession"
)

// StateChange is the data of a TypeStateChanged event.
type StateChange struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Reason   string `json:"reason"`
}

// Journal appends events to a writer. It implements lifecycle.EventEmitter.
type Journal struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	session string
	logger  log.Logger
	now     func() time.Time
	written int
}

// Option configures a Journal.
type Option func(*Journal)

func WithLogger(l log.Logger) Option { return func(j *Journal) { j.logger = log.OrNoop(l) } }

func WithClock(now func() time.Time) Option { return func(j *Journal) { j.now = now } }

func New(w io.Writer, session string, opts ...Option) *Journal {
	j := &Journal{w: w, session: session, logger: log.NewNoopLogger(), now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Open appends to dir/lifecycle.jsonl, creating dir if needed.
func Open(dir, session string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := New(f, session, opts...)
	j.closer = f
	return j, nil
}

var _ lifecycle.EventEmitter = (*Journal)(nil)

// OnStateChange records one lifecycle transition.
func (j *Journal) OnStateChange(previous, current lifecycle.State, reason string) {
	data := StateChange{Previous: previous.String(), Current: current.String(), Reason: reason}
	if err := j.Record(context.Background(), TypeStateChanged, current.String(), data); err != nil {
		j.logger.Warn("journal write failed", log.String("type", TypeStateChanged), log.Err(err))
	}
}

// Record writes one event of type typ with JSON data.
func (j *Journal) Record(ctx context.Context, typ, subject string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetType(typ)
	event.SetSource(Source)
	event.SetSubject(subject)
	event.SetTime(j.now())
	if j.session != "" {
		event.SetExtension(SessionExtension, j.session)
	}
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return fmt.Errorf("set event data: %w", err)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	b = append(b, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil {
		return fmt.Errorf("journal closed")
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	j.written++
	return nil
}

// Written returns the number of events recorded.
func (j *Journal) Written() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.w = nil
	if j.closer == nil {
		return nil
	}
	err := j.closer.Close()
	j.closer = nil
	return err
}

// ReadAll decodes every event in r.
func ReadAll(r io.Reader) ([]cloudevents.Event, error) {
	dec := json.NewDecoder(r)
	var out []cloudevents.Event
	for {
		var e cloudevents.Event
		if err := dec.Decode(&e); err == io.EOF {
			return out, nil
		} else if err != nil {
			return out, err
		}
		out = append(out, e)
	}
}
