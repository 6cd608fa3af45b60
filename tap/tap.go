// Package tap streams every dispatched event to diagnostic WebSocket clients
// as JSON.
//
// A Tap is registered with the engine as a dispatch.EnvelopeObserver. Each
// connected client owns a bounded mailbox; a slow client loses its oldest
// messages instead of delaying event delivery to other observers.
package tap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/opd-ai/rtcevent/dispatch"
	"github.com/opd-ai/rtcevent/relay"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultClientBuffer is the per-client message backlog
	DefaultClientBuffer = 256

	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// ErrClosed is returned when serving a closed tap.
var ErrClosed = errors.New("tap closed")

// Message is the JSON form of one dispatched event.
type Message struct {
	ID       string    `json:"id"`
	Seq      uint64    `json:"seq"`
	Produced time.Time `json:"produced"`
	Kind     string    `json:"kind"`
	Scope    string    `json:"scope"`
	Key      string    `json:"key,omitempty"`
	Event    any       `json:"event"`
}

// Options configures a Tap.
type Options struct {
	// ClientBuffer bounds the backlog of each client; zero uses the default
	ClientBuffer int
	// Mode is the gin mode: "debug", "release" or "test"
	Mode string
	// Stats, when set, is served on GET /stats
	Stats func() dispatch.Stats
}

type filter struct {
	kinds  map[string]bool
	scopes map[string]bool
}

func parseFilter(kinds, scopes string) filter {
	split := func(s string) map[string]bool {
		if s == "" {
			return nil
		}
		set := make(map[string]bool)
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				set[part] = true
			}
		}
		return set
	}
	return filter{kinds: split(kinds), scopes: split(scopes)}
}

func (f filter) accepts(m *Message) bool {
	if f.kinds != nil && !f.kinds[m.Kind] {
		return false
	}
	if f.scopes != nil && !f.scopes[m.Scope] {
		return false
	}
	return true
}

type client struct {
	id     string
	conn   *websocket.Conn
	filter filter
	box    *relay.Mailbox[[]byte]
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		c.box.Close()
		_ = c.conn.Close()
	})
}

// Tap fans dispatched events out to WebSocket clients.
type Tap struct {
	options  Options
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// New creates a tap. Register it with the engine to start receiving events.
func New(options Options) *Tap {
	if options.ClientBuffer <= 0 {
		options.ClientBuffer = DefaultClientBuffer
	}
	return &Tap{
		options: options,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// HandleEnvelope encodes env once and queues it for every matching client.
// It never blocks on the network.
func (t *Tap) HandleEnvelope(env dispatch.Envelope) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.clients) == 0 {
		return
	}

	key := env.Event.Key()
	msg := Message{
		ID:       env.ID,
		Seq:      env.Seq,
		Produced: env.Produced,
		Kind:     env.Event.Kind(),
		Scope:    key.Scope.String(),
		Key:      key.ID,
		Event:    env.Event,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Tap.HandleEnvelope",
			"event":    msg.Kind,
			"error":    err.Error(),
		}).Error("Failed to encode event")
		return
	}

	for _, c := range t.clients {
		if c.filter.accepts(&msg) {
			c.box.Put(data)
		}
	}
}

// Clients returns the number of connected clients.
func (t *Tap) Clients() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// Router returns the HTTP handler of the tap:
//
//	GET /events   WebSocket stream, optional ?kinds=a,b and ?scopes=room,player
//	GET /stats    dispatcher counters and connected clients
//	GET /healthz  liveness
func (t *Tap) Router() *gin.Engine {
	switch t.options.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(t.options.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if t.options.Mode == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/stats", t.handleStats)
	r.GET("/events", t.handleEvents)
	return r
}

func (t *Tap) handleStats(c *gin.Context) {
	body := gin.H{"clients": t.Clients()}
	if t.options.Stats != nil {
		s := t.options.Stats()
		body["published"] = s.Published
		body["delivered"] = s.Delivered
		body["dropped"] = s.Dropped
		body["queue_depth"] = s.QueueDepth
		body["observers"] = s.Observers
	}
	c.JSON(http.StatusOK, body)
}

func (t *Tap) handleEvents(c *gin.Context) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": ErrClosed.Error()})
		return
	}

	ws, err := t.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Tap.handleEvents",
			"remote":   c.Request.RemoteAddr,
			"error":    err.Error(),
		}).Warn("WebSocket upgrade failed")
		return
	}

	cl := &client{
		id:     uuid.NewString(),
		conn:   ws,
		filter: parseFilter(c.Query("kinds"), c.Query("scopes")),
		box:    relay.NewMailbox[[]byte](t.options.ClientBuffer),
	}
	if !t.add(cl) {
		cl.close()
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Tap.handleEvents",
		"client_id": cl.id,
		"remote":    c.Request.RemoteAddr,
	}).Info("Event tap client connected")

	go t.writePump(cl)
	go t.readPump(cl)
}

func (t *Tap) add(cl *client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.clients[cl.id] = cl
	return true
}

func (t *Tap) remove(cl *client) {
	t.mu.Lock()
	_, ok := t.clients[cl.id]
	delete(t.clients, cl.id)
	t.mu.Unlock()

	cl.close()
	if ok {
		logrus.WithFields(logrus.Fields{
			"function":  "Tap.remove",
			"client_id": cl.id,
			"dropped":   cl.box.Dropped(),
		}).Info("Event tap client disconnected")
	}
}

func (t *Tap) writePump(cl *client) {
	defer t.remove(cl)
	for data := range cl.box.C() {
		if err := cl.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "Tap.writePump",
				"client_id": cl.id,
				"error":     err.Error(),
			}).Debug("Write to tap client failed")
			return
		}
	}
}

// readPump discards client input and detects disconnects.
func (t *Tap) readPump(cl *client) {
	defer t.remove(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Close disconnects every client. Further connections are refused.
func (t *Tap) Close() {
	t.mu.Lock()
	t.closed = true
	clients := make([]*client, 0, len(t.clients))
	for _, cl := range t.clients {
		clients = append(clients, cl)
	}
	t.clients = make(map[string]*client)
	t.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
}

// Serve listens on addr until ctx is done, then shuts the server down and
// closes the tap.
func (t *Tap) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           t.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"function": "Tap.Serve",
			"addr":     addr,
		}).Info("Event tap listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		t.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	t.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
