package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/taskroute-live/config"
	"github.com/theoremus-urban-solutions/taskroute-live/taskapi"
	"github.com/theoremus-urban-solutions/taskroute-live/tracking"
)

const (
	defaultMaxAttempts  = 8
	defaultInitialDelay = 500 * time.Millisecond
	handshakeTimeout    = 10 * time.Second
)

// Sink receives stream traffic. *tracking.Engine implements it.
type Sink interface {
	Ingest(ctx context.Context, raw []byte) error
	Seed(ctx context.Context, tasks []tracking.Task, positions []tracking.LivePosition) error
	SetConnected(ctx context.Context, connected bool) error
}

// Snapshotter provides the state to seed from after connecting.
// *taskapi.Client implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (taskapi.Snapshot, error)
}

// Client is a reconnecting websocket consumer.
type Client struct {
	url      string
	header   http.Header
	dialer   *websocket.Dialer
	sink     Sink
	snap     Snapshotter
	retryCfg retry.Config
	logger   *slog.Logger
}

// Options tune a Client.
type Options struct {
	Token        string
	MaxAttempts  int
	InitialDelay time.Duration
	Logger       *slog.Logger
}

// NewClient creates a client for url. snap may be nil, in which case the
// engine is never re-seeded.
func NewClient(url string, sink Sink, snap Snapshotter, opts Options) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	return &Client{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		sink: sink,
		snap: snap,
		retryCfg: retry.Config{
			MaxAttempts:   opts.MaxAttempts,
			InitialDelay:  opts.InitialDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
		logger: opts.Logger,
	}
}

// NewClientFromConfig wires a client from the stream and API sections.
func NewClientFromConfig(cfg config.StreamConfig, api config.APIConfig, sink Sink, snap Snapshotter, logger *slog.Logger) *Client {
	return NewClient(cfg.URL, sink, snap, Options{
		Token:        api.Token,
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay(),
		Logger:       logger,
	})
}

// Run consumes the stream until ctx is cancelled. It returns ctx.Err() on
// cancellation and an error once a reconnect has exhausted its attempts.
func (c *Client) Run(ctx context.Context) error {
	for {
		r := retry.New[*websocket.Conn](c.retryCfg)
		conn, err := r.Do(ctx, c.connect)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("stream %s unavailable after %d attempts: %w", c.url, c.retryCfg.MaxAttempts, err)
		}

		err = c.consume(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, tracking.ErrEngineStopped) {
			return err
		}
		c.logger.Warn("stream disconnected, reconnecting", "url", c.url, "error", err)
	}
}

// connect dials and seeds. Seeding happens after the handshake so that
// events published while the snapshot is fetched wait in the socket.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: HTTP %d: %w", c.url, resp.StatusCode, err)
		}
		c.logger.Debug("stream dial failed", "url", c.url, "error", err)
		return nil, fmt.Errorf("failed to dial %s: %w", c.url, err)
	}
	if c.snap == nil {
		return conn, nil
	}

	snap, err := c.snap.Snapshot(ctx)
	if err == nil {
		err = c.sink.Seed(ctx, snap.Tasks, snap.Positions)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to seed after connect: %w", err)
	}
	return conn, nil
}

func (c *Client) consume(ctx context.Context, conn *websocket.Conn) error {
	session := uuid.New().String()
	logger := c.logger.With("session", session)

	var once sync.Once
	closeConn := func() { once.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-stop:
		}
	}()

	if err := c.sink.SetConnected(ctx, true); err != nil {
		return err
	}
	defer func() {
		// the engine may already be gone on shutdown
		dctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.sink.SetConnected(dctx, false)
	}()
	logger.Info("stream connected", "url", c.url)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := c.sink.Ingest(ctx, msg); err != nil {
			if errors.Is(err, tracking.ErrMalformedEvent) {
				continue
			}
			return err
		}
	}
}
