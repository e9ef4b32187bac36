package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15/v3"
	"github.com/wricardo/star-royale/game/engine"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	defaultSendBuffer = 256
	defaultRateLimit  = 120
	defaultRateBurst  = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Game is the part of the match engine a connection drives.
// *engine.Engine implements it.
type Game interface {
	Join(connID, userID string) (engine.Player, error)
	Move(connID string, m engine.Movement) bool
	Claim(connID string, starID uint64) engine.ClaimResult
	Leave(connID string) bool
}

// Client is one websocket connection
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	id      string
	userID  string
	limiter *rate.Limiter

	// joined is owned by the hub's Run goroutine.
	joined bool
}

type delivery int

const (
	toOne delivery = iota
	toAllExcept
	toAll
)

type outbound struct {
	kind   delivery
	connID string
	data   []byte
}

// Hub maintains the set of active clients and fans events out to them.
//
// All client bookkeeping happens on the Run goroutine. The Broadcaster methods
// hand each event to Run over an unbuffered channel, so events reach every
// client's send queue in the order the engine emitted them. A client whose
// queue is full is disconnected rather than allowed to stall the others.
//
// Broadcasts reach a client only after the engine has addressed it directly,
// which Join does first, so nobody sees updates about a match before its
// roster snapshot.
type Hub struct {
	clients map[string]*Client

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	count  atomic.Int64
	logger log15.Logger

	newID      func() string
	sendBuffer int
	rateLimit  rate.Limit
	rateBurst  int
}

// Option configures a Hub
type Option func(*Hub)

// WithLogger sets the hub logger
func WithLogger(l log15.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithConnectionIDs sets the generator used for new connection IDs.
func WithConnectionIDs(newID func() string) Option {
	return func(h *Hub) { h.newID = newID }
}

// WithSendBuffer sets how many outbound frames may queue per client before it
// counts as a slow consumer.
func WithSendBuffer(n int) Option {
	return func(h *Hub) { h.sendBuffer = n }
}

// WithRateLimit caps inbound frames per connection. Frames over the limit are
// dropped.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(h *Hub) {
		h.rateLimit = rate.Limit(perSecond)
		h.rateBurst = burst
	}
}

// NewHub creates a new WebSocket hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		newID:      uuid.NewString,
		sendBuffer: defaultSendBuffer,
		rateLimit:  defaultRateLimit,
		rateBurst:  defaultRateBurst,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log15.New("module", "websocket")
	}
	return h
}

// Run starts the hub's event loop. When ctx is canceled every client is sent
// a close frame and Run returns.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ctx.Done():
			close(h.done)
			for _, client := range h.clients {
				h.unregisterClient(client)
			}
			return nil
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// ServeWS upgrades the request and runs a connection for userID against game.
// The caller has already authenticated userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string, game Game) {
	if h.closed() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, h.sendBuffer),
		id:      h.newID(),
		userID:  userID,
		limiter: rate.NewLimiter(h.rateLimit, h.rateBurst),
	}

	if !h.add(client) {
		conn.Close()
		return
	}
	go client.writePump()

	if _, err := game.Join(client.id, userID); err != nil {
		if errors.Is(err, engine.ErrMatchFinished) {
			h.logger.Info("rejected late joiner", "conn", client.id, "user", userID)
		} else {
			h.logger.Warn("join failed", "conn", client.id, "user", userID, "err", err)
		}
		// Closing send lets writePump flush whatever Join queued, then close.
		h.remove(client)
		return
	}

	go client.readPump(game)
}

// Unicast sends ev to a single connection
func (h *Hub) Unicast(connID string, ev engine.Event) {
	h.publish(toOne, connID, ev)
}

// BroadcastExcept sends ev to every joined connection but connID
func (h *Hub) BroadcastExcept(connID string, ev engine.Event) {
	h.publish(toAllExcept, connID, ev)
}

// BroadcastAll sends ev to every joined connection
func (h *Hub) BroadcastAll(ev engine.Event) {
	h.publish(toAll, "", ev)
}

func (h *Hub) publish(kind delivery, connID string, ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", "event", ev.Type, "err", err)
		return
	}

	select {
	case h.broadcast <- outbound{kind: kind, connID: connID, data: data}:
	case <-h.done:
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.clients[client.id] = client
	h.count.Store(int64(len(h.clients)))

	h.logger.Debug("client registered", "conn", client.id, "user", client.userID, "clients", len(h.clients))
}

// unregisterClient removes a client and closes its send queue. Removing an
// already removed client is a no-op.
func (h *Hub) unregisterClient(client *Client) {
	if current, ok := h.clients[client.id]; !ok || current != client {
		return
	}

	delete(h.clients, client.id)
	close(client.send)
	h.count.Store(int64(len(h.clients)))

	h.logger.Debug("client unregistered", "conn", client.id, "clients", len(h.clients))
}

func (h *Hub) deliver(msg outbound) {
	if msg.kind == toOne {
		client, ok := h.clients[msg.connID]
		if !ok {
			return
		}
		client.joined = true
		h.enqueue(client, msg.data)
		return
	}

	for id, client := range h.clients {
		if !client.joined || (msg.kind == toAllExcept && id == msg.connID) {
			continue
		}
		h.enqueue(client, msg.data)
	}
}

func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("dropping slow client", "conn", client.id, "user", client.userID, "queued", len(client.send))
		h.unregisterClient(client)
	}
}
