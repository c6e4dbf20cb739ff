// Package transport owns the persistent session channel: dialing,
// authentication, the read pump, reconnection with backoff, and outbound
// command writes. It guarantees at most one active channel per logical
// session at any time.
package transport

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/topluluk-game/sync-client/internal/protocol"
)

var ErrNotConnected = errors.New("no active channel")
var ErrAuthRejected = errors.New("authentication rejected")

const (
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffCap  = 30 * time.Second

	dialTimeout  = 10 * time.Second
	writeTimeout = 3 * time.Second
	eventBuffer  = 256
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusJoined       Status = "joined"
	StatusReconnecting Status = "reconnecting"
	StatusClosed       Status = "closed"
	StatusFatal        Status = "fatal"
)

// StatusUpdate surfaces connection lifecycle to the presentation layer.
// Transient losses show up as reconnecting, never as fatal.
type StatusUpdate struct {
	Status Status
	Err    error
}

type Config struct {
	// URL is the websocket endpoint, e.g. ws://host/ws.
	URL       string
	SessionID string
	Token     string

	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type Client struct {
	cfg    Config
	log    *zap.SugaredLogger
	events chan protocol.Event
	status chan StatusUpdate

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	return &Client{
		cfg:    cfg,
		log:    log,
		events: make(chan protocol.Event, eventBuffer),
		status: make(chan StatusUpdate, 8),
	}
}

// Events is the inbound stream of decoded session events, in arrival order
// for the current connection. Closed when Run returns.
func (c *Client) Events() <-chan protocol.Event { return c.events }

// Status is the lifecycle stream.
func (c *Client) Status() <-chan StatusUpdate { return c.status }

// Run dials, joins and pumps until ctx is cancelled or authentication is
// rejected. Transient failures are retried with capped exponential backoff;
// every successful dial re-sends the join intent rather than assuming prior
// membership survived.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	defer c.dropConn()

	backoff := c.cfg.BackoffBase
	c.emit(StatusUpdate{Status: StatusConnecting})

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				c.emit(StatusUpdate{Status: StatusFatal, Err: err})
				return err
			}
			next, retry := c.retryAfter(ctx, err, backoff)
			if !retry {
				return nil
			}
			backoff = next
			continue
		}

		c.swapConn(conn)
		if err := c.Send(ctx, protocol.Command{Type: protocol.CmdJoinSession, SessionID: c.cfg.SessionID}); err != nil {
			// The channel came up but the join did not make it out; treat it
			// like a failed dial so a half-broken endpoint is not hammered.
			c.dropConn()
			next, retry := c.retryAfter(ctx, err, backoff)
			if !retry {
				return nil
			}
			backoff = next
			continue
		}

		readErr := c.readLoop(ctx, conn)
		c.dropConn()

		if ctx.Err() != nil || c.isClosed() {
			c.emit(StatusUpdate{Status: StatusClosed})
			return nil
		}
		if errors.Is(readErr, ErrAuthRejected) {
			c.emit(StatusUpdate{Status: StatusFatal, Err: readErr})
			return readErr
		}

		backoff = c.cfg.BackoffBase
		c.emit(StatusUpdate{Status: StatusReconnecting, Err: readErr})
		c.log.Infow("channel lost, reconnecting", "err", readErr)
	}
}

// Send writes one command on the active channel, fire-and-forget. It fails
// fast when no channel is up; nothing is queued for later.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) error {
	payload, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}

// Close tears the channel down. All session state held downstream is to be
// discarded by the owner; there is no drain of in-flight intents.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// retryAfter emits a reconnecting update and sleeps one backoff step,
// returning the next step. It reports false when the client is shutting down.
func (c *Client) retryAfter(ctx context.Context, err error, backoff time.Duration) (time.Duration, bool) {
	if ctx.Err() != nil || c.isClosed() {
		c.emit(StatusUpdate{Status: StatusClosed})
		return 0, false
	}
	c.emit(StatusUpdate{Status: StatusReconnecting, Err: err})
	c.log.Infow("channel setup failed, retrying", "err", err, "backoff", backoff)
	if !sleep(ctx, withJitter(backoff)) {
		c.emit(StatusUpdate{Status: StatusClosed})
		return 0, false
	}
	return nextBackoff(backoff, c.cfg.BackoffCap), true
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("session", c.cfg.SessionID)
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrAuthRejected
		}
		return nil, err
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	joined := false
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusPolicyViolation {
				return ErrAuthRejected
			}
			return err
		}

		ev, err := protocol.DecodeEvent(data)
		if err != nil {
			// Unknown kinds are forward compatibility; malformed frames are
			// dropped without touching the mirror.
			if errors.Is(err, protocol.ErrUnknownKind) {
				c.log.Debugw("ignoring unknown event kind")
			} else {
				c.log.Warnw("dropping malformed frame", "err", err)
			}
			continue
		}

		if !joined {
			// Membership is acknowledged by the first full snapshot, not by
			// whatever frame happens to arrive first.
			if _, ok := ev.(protocol.FullSnapshot); ok {
				joined = true
				c.emit(StatusUpdate{Status: StatusJoined})
			}
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// swapConn installs a new channel, closing any prior one first so a single
// logical session never holds two.
func (c *Client) swapConn(conn *websocket.Conn) {
	c.mu.Lock()
	prev := c.conn
	c.conn = conn
	c.mu.Unlock()
	if prev != nil {
		_ = prev.Close(websocket.StatusNormalClosure, "superseded")
	}
}

func (c *Client) dropConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// emit publishes a lifecycle update. Status is advisory: when the buffer is
// full the oldest queued update is evicted so the newest one always lands.
func (c *Client) emit(u StatusUpdate) {
	for {
		select {
		case c.status <- u:
			return
		default:
		}
		select {
		case <-c.status:
		default:
		}
	}
}

func withJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

func nextBackoff(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
