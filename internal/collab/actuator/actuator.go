// Package actuator drives an action executor attached to a serial port.
// Commands are newline-terminated ASCII lines; the device answers each with
// "OK" or "ERR <reason>".
package actuator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/resource"
)

const (
	DefaultBaudRate = 9600
	readTimeout     = 500 * time.Millisecond
)

var (
	ErrNotOpen    = errors.New("actuator port not open")
	ErrRejected   = errors.New("actuator rejected command")
	ErrBadCommand = errors.New("invalid actuator command")
	ErrNoAck      = errors.New("actuator did not acknowledge")
)

// OpenFunc opens a serial port; serial.Open by default.
type OpenFunc func(name string, mode *serial.Mode) (serial.Port, error)

// Actuator sends gesture actions to the device.
type Actuator struct {
	portName string
	baud     int
	open     OpenFunc
	logger   log.Logger

	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader
}

// Option configures an Actuator.
type Option func(*Actuator)

// WithOpenFunc replaces serial.Open.
func WithOpenFunc(fn OpenFunc) Option {
	return func(a *Actuator) { a.open = fn }
}

func New(portName string, baud int, logger log.Logger, opts ...Option) *Actuator {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	a := &Actuator{
		portName: portName,
		baud:     baud,
		open:     serial.Open,
		logger:   log.OrNoop(logger),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Actuator) Name() string { return "actuator" }

func (a *Actuator) Acquire(ctx context.Context) (resource.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := a.open(a.portName, &serial.Mode{BaudRate: a.baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", a.portName, err)
	}

	a.mu.Lock()
	a.port = port
	a.reader = bufio.NewReader(port)
	a.mu.Unlock()

	return resource.Info{"port": a.portName, "baud": a.baud}, nil
}

// Send writes one action and waits for the acknowledgement line.
func (a *Actuator) Send(ctx context.Context, action string) error {
	line, err := encode(action)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return ErrNotOpen
	}

	if _, err := a.port.Write(line); err != nil {
		return fmt.Errorf("write %q: %w", action, err)
	}
	resp, err := a.reader.ReadString('\n')
	if err != nil && resp == "" {
		return fmt.Errorf("%w: %v", ErrNoAck, err)
	}
	return decodeAck(resp)
}

func (a *Actuator) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return nil
	}
	err := a.port.Close()
	a.port, a.reader = nil, nil
	a.logger.Debug("actuator port closed", log.String("port", a.portName))
	return err
}

// encode validates an action name and frames it as "ACT <name>\n".
func encode(action string) ([]byte, error) {
	action = strings.TrimSpace(action)
	if action == "" || strings.ContainsAny(action, " \r\n") {
		return nil, fmt.Errorf("%w: %q", ErrBadCommand, action)
	}
	return []byte("ACT " + strings.ToUpper(action) + "\n"), nil
}

func decodeAck(resp string) error {
	resp = strings.TrimSpace(resp)
	switch {
	case resp == "OK":
		return nil
	case strings.HasPrefix(resp, "ERR"):
		return fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(strings.TrimPrefix(resp, "ERR")))
	case resp == "":
		return ErrNoAck
	default:
		return fmt.Errorf("%w: unexpected reply %q", ErrNoAck, resp)
	}
}
