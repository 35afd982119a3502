package exaroton

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// ErrServerNotFound is returned when no server has the requested name.
var ErrServerNotFound = errors.New("server not found")

// Server is a game server as listed by the cloud host.
type Server struct {
	ID      string
	Name    string
	Status  Status
	Players []string
}

// Online reports whether the server accepts players.
func (s Server) Online() bool {
	return s.Status == StatusOnline
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// Client talks to the cloud host REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	ids     *ttlcache.Cache[string, string]
	logger  zerolog.Logger
}

// NewClient creates a new API client. Close releases the ID cache.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	ids := ttlcache.New(
		ttlcache.WithTTL[string, string](opts.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go ids.Start()

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		ids:     ids,
		logger:  logger.With().Str("component", "exaroton").Logger(),
	}
}

// Close stops the cache janitor.
func (c *Client) Close() {
	c.ids.Stop()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("%s %s: status %d: invalid JSON response", method, path, resp.StatusCode)
	}

	result := gjson.ParseBytes(data)
	if resp.StatusCode >= 300 || !result.Get("success").Bool() {
		msg := result.Get("error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return gjson.Result{}, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	return result.Get("data"), nil
}

func parseServer(v gjson.Result) Server {
	s := Server{
		ID:     v.Get("id").String(),
		Name:   v.Get("name").String(),
		Status: Status(v.Get("status").Int()),
	}
	for _, p := range v.Get("players.list").Array() {
		if name := p.String(); name != "" {
			s.Players = append(s.Players, name)
		}
	}
	return s
}

// Servers lists every server on the account.
func (c *Client) Servers(ctx context.Context) ([]Server, error) {
	data, err := c.do(ctx, http.MethodGet, "/servers/", nil)
	if err != nil {
		return nil, err
	}

	var servers []Server
	data.ForEach(func(_, v gjson.Result) bool {
		servers = append(servers, parseServer(v))
		return true
	})
	for _, s := range servers {
		c.ids.Set(s.Name, s.ID, ttlcache.DefaultTTL)
	}
	return servers, nil
}

// ServerByName finds a server by its display name.
func (c *Client) ServerByName(ctx context.Context, name string) (Server, error) {
	servers, err := c.Servers(ctx)
	if err != nil {
		return Server{}, err
	}
	for _, s := range servers {
		if s.Name == name {
			return s, nil
		}
	}
	return Server{}, fmt.Errorf("%w: %q", ErrServerNotFound, name)
}

// ServerID resolves a server name to its ID, using the cache when possible.
func (c *Client) ServerID(ctx context.Context, name string) (string, error) {
	if item := c.ids.Get(name); item != nil {
		return item.Value(), nil
	}
	s, err := c.ServerByName(ctx, name)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// IsOnline reports whether the named server is online.
func (c *Client) IsOnline(ctx context.Context, name string) (bool, error) {
	s, err := c.ServerByName(ctx, name)
	if err != nil {
		return false, err
	}
	return s.Online(), nil
}

// OnlinePlayers returns the roster of the named server.
func (c *Client) OnlinePlayers(ctx context.Context, name string) ([]string, error) {
	s, err := c.ServerByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.Players, nil
}

// ExecuteCommand runs a console command on the server with the given ID.
func (c *Client) ExecuteCommand(ctx context.Context, id, command string) error {
	_, err := c.do(ctx, http.MethodPost, "/servers/"+id+"/command/", map[string]string{"command": command})
	if err != nil {
		return err
	}
	c.logger.Debug().Str("server_id", id).Str("command", command).Msg("Executed command")
	return nil
}

// Commander returns a sender executing commands on the named server.
func (c *Client) Commander(name string) *Commander {
	return &Commander{client: c, name: name}
}

// Commander executes console commands on one server over REST.
type Commander struct {
	client *Client
	name   string
}

// Send implements console.Sender.
func (cm *Commander) Send(ctx context.Context, command string) error {
	id, err := cm.client.ServerID(ctx, cm.name)
	if err != nil {
		return err
	}
	return cm.client.ExecuteCommand(ctx, id, command)
}
