package logrouter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type sink interface {
	name() string
	minSeverity() Severity
	write(rec Record) error
	close() error
}

func buildSink(spec SinkSpec, now func() time.Time, report func(error)) (sink, error) {
	spec, err := spec.normalize()
	if err != nil {
		return nil, err
	}
	f, err := newFormatter(spec)
	if err != nil {
		return nil, fmt.Errorf("sink %s: %w", spec.Name, err)
	}
	if spec.Target == TargetConsole {
		w := spec.Writer
		if w == nil {
			w = os.Stderr
		}
		return &consoleSink{spec: spec, out: w, fmt: f}, nil
	}
	s := &fileSink{spec: spec, fmt: f, now: now, report: report}
	if err := os.MkdirAll(spec.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink %s: create log dir: %w", spec.Name, err)
	}
	if err := s.open(); err != nil {
		return nil, fmt.Errorf("sink %s: %w", spec.Name, err)
	}
	return s, nil
}

// consoleSink never rotates. The writer is not closed.
type consoleSink struct {
	mu   sync.Mutex
	spec SinkSpec
	out  io.Writer
	fmt  formatter
}

func (s *consoleSink) name() string          { return s.spec.Name }
func (s *consoleSink) minSeverity() Severity { return s.spec.MinSeverity }
func (s *consoleSink) close() error          { return nil }

func (s *consoleSink) write(rec Record) error {
	line := s.fmt.format(rec, s.spec.Backtrace)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(line)
	return err
}

// fileSink appends to Dir/Prefix_<stamp>.log and rotates by size.
type fileSink struct {
	mu      sync.Mutex
	spec    SinkSpec
	fmt     formatter
	now     func() time.Time
	report  func(error)
	file    *os.File
	path    string
	written int64
}

func (s *fileSink) name() string          { return s.spec.Name }
func (s *fileSink) minSeverity() Severity { return s.spec.MinSeverity }

// Path returns the file currently being written.
func (s *fileSink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *fileSink) write(rec Record) error {
	line := s.fmt.format(rec, s.spec.Backtrace)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrSinkClosed
	}
	if s.written > 0 && s.written+int64(len(line)) > s.spec.MaxBytes {
		if err := s.rotate(); err != nil {
			return fmt.Errorf("rotate: %w", err)
		}
	}
	n, err := s.file.Write(line)
	s.written += int64(n)
	return err
}

func (s *fileSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// open creates a fresh timestamped file and applies retention to the files
// left behind by earlier rotations or sessions.
func (s *fileSink) open() error {
	path := s.nextPath()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.file = f
	s.path = path
	s.written = 0

	if err := pruneRotated(s.spec.Dir, s.spec.Prefix, path, s.spec.Retention); err != nil {
		s.report(fmt.Errorf("sink %s: retention: %w", s.spec.Name, err))
	}
	return nil
}

func (s *fileSink) nextPath() string {
	t := s.now()
	for {
		p := filepath.Join(s.spec.Dir, rotatedName(s.spec.Prefix, t))
		if !exists(p) && !exists(p+gzipSuffix) {
			return p
		}
		t = t.Add(time.Nanosecond)
	}
}

func (s *fileSink) rotate() error {
	old := s.path
	if err := s.file.Close(); err != nil {
		s.report(fmt.Errorf("sink %s: close %s: %w", s.spec.Name, old, err))
	}
	s.file = nil

	if s.spec.Compress {
		if err := compressFile(old); err != nil {
			s.report(fmt.Errorf("sink %s: compress %s: %w", s.spec.Name, old, err))
		}
	}
	return s.open()
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
