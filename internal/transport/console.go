package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goodtune/attr/internal/exaroton"
	"github.com/goodtune/attr/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ErrNotSubscribed is returned by Send while the console stream is down.
var ErrNotSubscribed = errors.New("console stream not subscribed")

const writeTimeout = 10 * time.Second

// LineHandler receives each console line.
type LineHandler func(ctx context.Context, line string)

// Options configures a Console.
type Options struct {
	URL     string
	Token   string
	Tail    int
	Backoff Backoff
}

// Console is a reconnecting console stream over the cloud host websocket.
type Console struct {
	url     string
	token   string
	tail    int
	backoff Backoff
	dialer  *websocket.Dialer
	handler LineHandler
	logger  zerolog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	subscribed   bool
	onSubscribed func(ctx context.Context)
}

type envelope struct {
	Stream string `json:"stream"`
	Type   string `json:"type"`
	Data   any    `json:"data,omitempty"`
}

// NewConsole creates a console stream. handler may be nil.
func NewConsole(opts Options, handler LineHandler, logger zerolog.Logger) *Console {
	if opts.Tail <= 0 {
		opts.Tail = 50
	}
	return &Console{
		url:     opts.URL,
		token:   opts.Token,
		tail:    opts.Tail,
		backoff: opts.Backoff,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		handler: handler,
		logger:  logger.With().Str("component", "transport").Logger(),
	}
}

// OnSubscribed registers a callback run each time the console stream starts.
func (c *Console) OnSubscribed(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSubscribed = fn
}

// Subscribed reports whether commands can be sent.
func (c *Console) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// Send writes a console command.
func (c *Console) Send(ctx context.Context, command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.subscribed || c.conn == nil {
		return ErrNotSubscribed
	}
	return c.write(envelope{Stream: "console", Type: "command", Data: command})
}

// write must be called with c.mu held.
func (c *Console) write(msg envelope) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Run connects and reconnects until ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	for {
		if attempt := c.backoff.Attempt(); attempt == 0 {
			c.logger.Info().Str("url", c.url).Msg("Connecting to console")
		} else {
			c.logger.Info().Int("attempt", attempt).Msg("Reconnecting to console")
		}

		start := time.Now()
		serverInitiated, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lasted := time.Since(start)
		delay := c.backoff.Next(lasted, serverInitiated)

		reason := "unexpected"
		if serverInitiated {
			reason = "server"
		}
		metrics.TransportReconnects.WithLabelValues(reason).Inc()
		c.logger.Warn().
			Err(err).
			Str("reason", reason).
			Dur("lasted", lasted).
			Dur("delay", delay).
			Msg("Console connection closed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session runs one connection. It reports whether the server asked us to
// disconnect.
func (c *Console) session(ctx context.Context) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.conn = nil
		c.subscribed = false
		c.mu.Unlock()
		conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return false, err
		}
		if c.handle(ctx, data) {
			return true, nil
		}
	}
}

// handle processes one frame and reports whether the server disconnected.
func (c *Console) handle(ctx context.Context, data []byte) bool {
	if !gjson.ValidBytes(data) {
		c.logger.Warn().Int("bytes", len(data)).Msg("Ignoring malformed frame")
		return false
	}
	msg := gjson.ParseBytes(data)
	stream := msg.Get("stream").String()
	typ := msg.Get("type").String()

	if stream == "" {
		switch typ {
		case "ready":
			c.logger.Info().Str("server_id", msg.Get("data").String()).Msg("Console ready, subscribing")
			c.mu.Lock()
			err := c.write(envelope{Stream: "console", Type: "start", Data: map[string]int{"tail": c.tail}})
			c.mu.Unlock()
			if err != nil {
				c.logger.Error().Err(err).Msg("Failed to subscribe to console")
			}
		case "connected":
			c.logger.Info().Msg("Connected to game server")
		case "disconnected":
			c.logger.Warn().Str("reason", msg.Get("data").String()).Msg("Disconnected by server")
			return true
		case "keep-alive":
		default:
			c.logger.Debug().Str("type", typ).Msg("Unhandled message")
		}
		return false
	}

	switch stream {
	case "status":
		if typ == "status" {
			status := exaroton.Status(msg.Get("data.status").Int())
			c.logger.Info().Stringer("status", status).Msg("Server status changed")
		}
	case "console":
		switch typ {
		case "started":
			c.mu.Lock()
			c.subscribed = true
			fn := c.onSubscribed
			c.mu.Unlock()
			c.logger.Info().Msg("Console stream started")
			if fn != nil {
				fn(ctx)
			}
		case "line":
			if c.handler != nil {
				c.handler(ctx, msg.Get("data").String())
			}
		}
	}
	return false
}
