package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"nightcircle/internal/metrics"
)

const (
	defaultQueueSize = 64
	writeWait        = 10 * time.Second
	pingPeriod       = 30 * time.Second
)

// ClientOptions tune a connection's queue and inbound rate limit.
type ClientOptions struct {
	QueueSize int
	// RatePerSecond <= 0 disables limiting.
	RatePerSecond float64
	Burst         int
}

// Client is one live connection. Frames are queued and written by the
// connection's own writer goroutine, so emitting never blocks the caller.
type Client struct {
	ID       string
	UserID   string
	Username string

	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func NewClient(userID, username string, opts ClientOptions) *Client {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	c := &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Username: username,
		send:     make(chan []byte, size),
		done:     make(chan struct{}),
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c
}

// Enqueue queues a frame, dropping it when the queue is full or closed.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.FramesDropped.Inc()
		return false
	}
}

// Allow reports whether another inbound event may be processed now.
func (c *Client) Allow() bool {
	if c.limiter == nil {
		return true
	}
	if c.limiter.Allow() {
		return true
	}
	metrics.RateLimited.Inc()
	return false
}

// Drain returns every queued frame without blocking.
func (c *Client) Drain() [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-c.send:
			out = append(out, f)
		default:
			return out
		}
	}
}

// Close stops the writer; queued frames are flushed best-effort.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) Done() <-chan struct{} { return c.done }

// FrameWriter is the subset of a websocket connection the writer needs.
type FrameWriter interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// WritePump drains the queue into w until the client is closed or a write
// fails. It also keeps the connection alive with pings.
func (c *Client) WritePump(w FrameWriter) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = w.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-ticker.C:
			_ = w.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-c.done:
			for _, frame := range c.Drain() {
				_ = w.SetWriteDeadline(time.Now().Add(writeWait))
				if err := w.WriteMessage(websocket.TextMessage, frame); err != nil {
					return err
				}
			}
			return nil
		}
	}
}
