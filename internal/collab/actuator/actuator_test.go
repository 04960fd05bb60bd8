package actuator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort implements the parts of serial.Port the actuator uses.
type fakePort struct {
	serial.Port

	written bytes.Buffer
	replies *bytes.Buffer
	closed  bool
	mode    *serial.Mode
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }

func (p *fakePort) Read(b []byte) (int, error) {
	if p.replies.Len() == 0 {
		return 0, io.EOF
	}
	return p.replies.Read(b)
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newFake(replies string) (*fakePort, OpenFunc) {
	p := &fakePort{replies: bytes.NewBufferString(replies)}
	return p, func(name string, mode *serial.Mode) (serial.Port, error) {
		p.mode = mode
		return p, nil
	}
}

func TestActuator_Send(t *testing.T) {
	port, open := newFake("OK\nERR busy\n")
	a := New("/dev/ttyUSB0", 0, nil, WithOpenFunc(open))

	info, err := a.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if info["baud"] != DefaultBaudRate || port.mode.BaudRate != DefaultBaudRate {
		t.Errorf("baud = %v / %d, want %d", info["baud"], port.mode.BaudRate, DefaultBaudRate)
	}

	if err := a.Send(context.Background(), "swipe_left"); err != nil {
		t.Errorf("Send() first = %v, want nil", err)
	}
	if err := a.Send(context.Background(), "fist"); !errors.Is(err, ErrRejected) {
		t.Errorf("Send() second = %v, want ErrRejected", err)
	}
	if err := a.Send(context.Background(), "palm"); !errors.Is(err, ErrNoAck) {
		t.Errorf("Send() third = %v, want ErrNoAck", err)
	}

	want := "ACT SWIPE_LEFT\nACT FIST\nACT PALM\n"
	if got := port.written.String(); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}

	if err := a.Release(context.Background()); err != nil {
		t.Errorf("Release() = %v", err)
	}
	if !port.closed {
		t.Error("port not closed on Release")
	}
	if err := a.Send(context.Background(), "palm"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send() after release = %v, want ErrNotOpen", err)
	}
}

func TestActuator_AcquireFails(t *testing.T) {
	errNoDevice := errors.New("no such device")
	a := New("/dev/missing", 9600, nil, WithOpenFunc(func(string, *serial.Mode) (serial.Port, error) {
		return nil, errNoDevice
	}))

	if _, err := a.Acquire(context.Background()); !errors.Is(err, errNoDevice) {
		t.Errorf("Acquire() = %v, want %v", err, errNoDevice)
	}
	if err := a.Release(context.Background()); err != nil {
		t.Errorf("Release() without port = %v", err)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "wave", want: "ACT WAVE\n"},
		{in: "  ok_sign ", want: "ACT OK_SIGN\n"},
		{in: "", wantErr: true},
		{in: "two words", wantErr: true},
		{in: "line\nbreak", wantErr: true},
	}
	for _, tt := range tests {
		got, err := encode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("encode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("encode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
