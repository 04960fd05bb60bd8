// Package detector is a client for a remote gesture detection engine
// reached over a websocket. Frames go out as binary JPEG messages and each
// one is answered with a JSON array of detections.
package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/gest/internal/collab"
	"github.com/bft-labs/gest/pkg/log"
	"github.com/bft-labs/gest/pkg/resource"
)

var ErrNotConnected = errors.New("detector not connected")

// Detection is one recognised gesture in a frame.
type Detection struct {
	Label string    `json:"label"`
	Score float64   `json:"score"`
	Box   []float64 `json:"box,omitempty"`
}

// Config for Client.
type Config struct {
	URL          string
	DialAttempts int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

func (c *Config) defaults() {
	if c.DialAttempts <= 0 {
		c.DialAttempts = 3
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
}

// Client holds one websocket connection to the engine.
type Client struct {
	cfg     Config
	logger  log.Logger
	backoff *collab.Backoff

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(cfg Config, logger log.Logger) *Client {
	cfg.defaults()
	return &Client{
		cfg:     cfg,
		logger:  log.OrNoop(logger),
		backoff: collab.NewBackoff(200*time.Millisecond, 2*time.Second),
	}
}

func (c *Client) Name() string { return "detector" }

// Acquire dials the engine, retrying with backoff.
func (c *Client) Acquire(ctx context.Context) (resource.Info, error) {
	var conn *websocket.Conn
	err := collab.Retry(ctx, c.cfg.DialAttempts, c.backoff, func(ctx context.Context) error {
		var err error
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Warn("detector dial failed", log.String("url", c.cfg.URL), log.Err(err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect detector %s: %w", c.cfg.URL, err)
	}
	c.backoff.Reset()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return resource.Info{
		"url":    c.cfg.URL,
		"remote": conn.RemoteAddr().String(),
	}, nil
}

// Detect sends one frame and waits for its detections.
func (c *Client) Detect(ctx context.Context, frame []byte) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}

	c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}

	var out []Detection
	if err := json.Unmarshal(msg, &out); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	return out, nil
}

// Release sends a close frame and closes the connection.
func (c *Client) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown")
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, deadline(ctx, time.Second))
	cerr := c.conn.Close()
	c.conn = nil

	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		c.logger.Debug("detector close frame failed", log.Err(werr))
	}
	return cerr
}

func deadline(ctx context.Context, d time.Duration) time.Time {
	t := time.Now().Add(d)
	if dl, ok := ctx.Deadline(); ok && dl.Before(t) {
		return dl
	}
	return t
}
