package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/centinelapos/webapp/internal/telemetry/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// EventMessage is the only event the chat server emits and listens to.
const EventMessage = "enviar-mensaje-front-back"

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	incomingBufferSize      = 64
)

var (
	ErrEmptyMessage = errors.New("empty chat message")
	ErrClosed       = errors.New("chat client closed")
	ErrNotConnected = errors.New("chat client not connected")
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type ClientParams struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	MetricsManager   *metrics.Manager
	// NewBackOff builds the reconnect policy, exponential without a deadline
	// when nil.
	NewBackOff func() backoff.BackOff
}

// Client keeps one socket.io connection to the chat server and the log of
// everything sent and received over it. The log survives reconnects.
type Client struct {
	url              string
	header           http.Header
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	metricsManager   *metrics.Manager
	newBackOff       func() backoff.BackOff
	log              *Log
	incoming         chan Message

	mutex sync.Mutex
	conn  *websocket.Conn
	state State

	writeMutex sync.Mutex

	// canceled by Close, stops pending reconnects
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// ability to inject time for unit tests
	Now func() time.Time
}

func NewClient(params ClientParams) *Client {
	handshakeTimeout := params.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}

	newBackOff := params.NewBackOff
	if newBackOff == nil {
		newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			b.MaxElapsedTime = 0
			return b
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:    params.URL,
		header: params.Header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		handshakeTimeout: handshakeTimeout,
		metricsManager:   params.MetricsManager,
		newBackOff:       newBackOff,
		log:              NewLog(),
		incoming:         make(chan Message, incomingBufferSize),
		state:            StateDisconnected,
		ctx:              ctx,
		cancel:           cancel,
		Now:              time.Now,
	}
}

func (c *Client) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state
}

func (c *Client) Log() *Log {
	return c.log
}

// Incoming publishes every received message. The channel is closed by Close.
func (c *Client) Incoming() <-chan Message {
	return c.incoming
}

// Connect dials the chat server and completes the socket.io handshake.
// It is a no-op while a connection is up or being established.
func (c *Client) Connect(ctx context.Context) error {
	c.mutex.Lock()
	switch c.state {
	case StateClosed:
		c.mutex.Unlock()
		return ErrClosed
	case StateConnecting, StateConnected, StateReconnecting:
		c.mutex.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mutex.Unlock()

	conn, pingDeadline, err := c.dial(ctx)
	if err != nil {
		c.mutex.Lock()
		if c.state == StateConnecting {
			c.state = StateDisconnected
		}
		c.mutex.Unlock()
		return err
	}

	return c.attach(conn, pingDeadline)
}

// Send appends text to the log as sent by me, then emits it.
func (c *Client) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mutex.Lock()
	state, conn := c.state, c.conn
	c.mutex.Unlock()
	if state == StateClosed {
		return ErrClosed
	}

	c.log.Append(Message{Text: text, Sender: SenderMe, At: c.Now()})

	if conn == nil {
		return ErrNotConnected
	}

	frame, err := EncodeEvent(EventMessage, text)
	if err != nil {
		return err
	}
	if err := c.write(ctx, conn, frame); err != nil {
		return fmt.Errorf("send chat message: %w", err)
	}

	if c.metricsManager != nil {
		c.metricsManager.CounterChatMessages.WithLabelValues("out").Inc()
	}

	return nil
}

// Close is final: the connection is dropped, reconnects stop and Incoming
// is closed.
func (c *Client) Close() error {
	c.mutex.Lock()
	if c.state == StateClosed {
		c.mutex.Unlock()
		return nil
	}
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	c.mutex.Unlock()

	c.cancel()

	var err error
	if conn != nil {
		// best effort socket disconnect
		_ = c.write(context.Background(), conn, []byte{engineMessage, socketDisconnect})
		err = conn.Close()
		c.connectionsGaugeDec()
	}

	c.wg.Wait()
	close(c.incoming)

	return err
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, time.Duration, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("dial chat server: %w", err)
	}

	pingDeadline, err := c.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, 0, err
	}

	return conn, pingDeadline, nil
}

type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// handshake waits for the engine open packet, joins the default namespace
// and returns how long the connection may stay silent before it is
// considered dead.
func (c *Client) handshake(ctx context.Context, conn *websocket.Conn) (time.Duration, error) {
	deadline := time.Now().Add(c.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read open packet: %w", err)
	}
	frame, err := DecodeFrame(raw)
	if err != nil {
		return 0, err
	}
	if frame.EngineType != engineOpen {
		return 0, fmt.Errorf("%w: expected open packet, got %q", ErrMalformedFrame, raw)
	}

	var open openPayload
	if err := json.Unmarshal(frame.Data, &open); err != nil {
		return 0, fmt.Errorf("%w: open payload: %s", ErrMalformedFrame, err)
	}

	if err := c.write(ctx, conn, connectFrame()); err != nil {
		return 0, fmt.Errorf("join namespace: %w", err)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read connect ack: %w", err)
		}
		frame, err := DecodeFrame(raw)
		if err != nil {
			log.Debugf("chat handshake: skipping frame: %s", err)
			continue
		}

		switch {
		case frame.EngineType == enginePing:
			if err := c.write(ctx, conn, pongFrame()); err != nil {
				return 0, err
			}
		case frame.EngineType == engineMessage && frame.SocketType == socketConnect:
			if err := conn.SetReadDeadline(time.Time{}); err != nil {
				return 0, err
			}
			log.Debugf("chat connected, engine sid [%s]", open.SID)
			return time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond, nil
		case frame.EngineType == engineMessage && frame.SocketType == socketConnectError:
			return 0, fmt.Errorf("chat server refused connection: %s", frame.Data)
		}
	}
}

func (c *Client) attach(conn *websocket.Conn, pingDeadline time.Duration) error {
	c.mutex.Lock()
	if c.state == StateClosed {
		c.mutex.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.wg.Add(1)
	c.mutex.Unlock()

	if c.metricsManager != nil {
		c.metricsManager.GaugeChatConnections.Inc()
	}

	go c.readLoop(conn, pingDeadline)

	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, pingDeadline time.Duration) {
	defer c.wg.Done()

	for {
		if pingDeadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(pingDeadline))
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.dropped(conn, err)
			return
		}

		frame, err := DecodeFrame(raw)
		if err != nil {
			log.Warnf("chat: %s", err)
			continue
		}

		switch {
		case frame.EngineType == enginePing:
			if err := c.write(c.ctx, conn, pongFrame()); err != nil {
				c.dropped(conn, err)
				return
			}
		case frame.EngineType == engineClose,
			frame.EngineType == engineMessage && frame.SocketType == socketDisconnect:
			c.dropped(conn, errors.New("closed by server"))
			return
		case frame.IsEvent(EventMessage):
			c.receive(frame.Text())
		}
	}
}

func (c *Client) receive(text string) {
	msg := Message{Text: text, Sender: SenderOther, At: c.Now()}
	c.log.Append(msg)

	if c.metricsManager != nil {
		c.metricsManager.CounterChatMessages.WithLabelValues("in").Inc()
	}

	select {
	case c.incoming <- msg:
	default:
		// readers catch up through Log().Since
		log.Debugf("chat: incoming buffer full, message deferred to log")
		if c.metricsManager != nil {
			c.metricsManager.CounterChatMessages.WithLabelValues("deferred").Inc()
		}
	}
}

// dropped handles an unexpected loss of conn and starts reconnecting.
func (c *Client) dropped(conn *websocket.Conn, reason error) {
	c.mutex.Lock()
	if c.conn != conn || c.state == StateClosed {
		c.mutex.Unlock()
		return
	}
	c.conn = nil
	c.state = StateReconnecting
	c.wg.Add(1)
	c.mutex.Unlock()

	_ = conn.Close()
	c.connectionsGaugeDec()
	log.Warnf("chat connection lost: %s", reason)

	go c.reconnect()
}

func (c *Client) reconnect() {
	defer c.wg.Done()

	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			if c.ctx.Err() != nil {
				return backoff.Permanent(ErrClosed)
			}
			attempt++
			conn, pingDeadline, err := c.dial(c.ctx)
			if err != nil {
				return err
			}
			if err := c.attach(conn, pingDeadline); err != nil {
				return backoff.Permanent(err)
			}
			return nil
		},
		backoff.WithContext(c.newBackOff(), c.ctx),
		func(err error, next time.Duration) {
			log.Debugf("chat reconnect attempt %d failed: %s, next in %s", attempt, err, next)
		},
	)
	if err != nil {
		c.mutex.Lock()
		if c.state == StateReconnecting {
			c.state = StateDisconnected
		}
		c.mutex.Unlock()
		if !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
			log.Errorf("chat reconnect gave up: %s", err)
		}
		return
	}

	if c.metricsManager != nil {
		c.metricsManager.CounterChatReconnects.Inc()
	}
	log.Infof("chat reconnected after %d attempt(s)", attempt)
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) connectionsGaugeDec() {
	if c.metricsManager != nil {
		c.metricsManager.GaugeChatConnections.Dec()
	}
}
