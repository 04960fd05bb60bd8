// Package camera adapts an OpenCV video capture device to a lifecycle
// resource.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/resource"
)

var (
	ErrNotOpen    = errors.New("camera not open")
	ErrEmptyFrame = errors.New("camera returned an empty frame")
)

// Camera is a video capture device opened by index ("0") or URL.
type Camera struct {
	device string
	logger log.Logger

	mu    sync.Mutex
	vc    *gocv.VideoCapture
	frame gocv.Mat
}

func New(device string, logger log.Logger) *Camera {
	return &Camera{device: device, logger: log.OrNoop(logger)}
}

func (c *Camera) Name() string { return "camera" }

// Acquire opens the device and reads one frame to learn its resolution.
func (c *Camera) Acquire(ctx context.Context) (resource.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(parseDevice(c.device))
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", c.device, err)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	frame := gocv.NewMat()
	if ok := vc.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		vc.Close()
		return nil, fmt.Errorf("camera %q: %w", c.device, ErrEmptyFrame)
	}

	c.mu.Lock()
	c.vc, c.frame = vc, frame
	c.mu.Unlock()

	return resource.Info{
		"device": c.device,
		"width":  frame.Cols(),
		"height": frame.Rows(),
		"fps":    vc.Get(gocv.VideoCaptureFPS),
	}, nil
}

// ReadFrame captures one frame and returns it JPEG-encoded. A failed read
// from a video file or stream returns io.EOF; a live device reports
// ErrEmptyFrame and may recover on the next read.
func (c *Camera) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil, ErrNotOpen
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, readFailure(c.device)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (c *Camera) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	c.frame.Close()
	err := c.vc.Close()
	c.vc = nil
	c.logger.Debug("camera closed", log.String("device", c.device))
	return err
}

// parseDevice turns a numeric device string into an index; anything else
// is passed through as a file or stream URL.
func parseDevice(device string) any {
	if id, err := strconv.Atoi(device); err == nil {
		return id
	}
	return device
}

func readFailure(device string) error {
	if isLive(device) {
		return ErrEmptyFrame
	}
	return io.EOF
}

// isLive reports whether device names a capture device (an index or a
// /dev node) rather than a recording or stream that can run out.
func isLive(device string) bool {
	if _, ok := parseDevice(device).(int); ok {
		return true
	}
	return strings.HasPrefix(device, "/dev/")
}
