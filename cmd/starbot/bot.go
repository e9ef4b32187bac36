package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/inconshreveable/log15/v3"
	"github.com/jpillora/backoff"
)

// Wire shapes mirrored from the server's outbound events.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type star struct {
	ID uint64  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type player struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Team     string  `json:"team"`
}

type roster struct {
	You     string            `json:"you"`
	Players map[string]player `json:"players"`
}

type score struct {
	TeamA int `json:"teamA"`
	TeamB int `json:"teamB"`
}

type matchOver struct {
	Winner string  `json:"winner"`
	Prize  float64 `json:"prize"`
	Score  score   `json:"score"`
}

// Bot is one automated player. It walks straight at the star and claims it
// once within reach.
type Bot struct {
	serverURL string
	userID    string
	header    string
	speed     float64
	reach     float64
	tick      time.Duration
	logger    log15.Logger

	mu       sync.Mutex
	id       string
	team     string
	pos      position
	target   *star
	claimed  uint64
	claims   int
	score    score
	finished *matchOver
}

// NewBot creates a bot that will connect to serverURL as userID
func NewBot(serverURL, userID string, opts ...BotOption) *Bot {
	b := &Bot{
		serverURL: serverURL,
		userID:    userID,
		header:    "X-User-ID",
		speed:     8,
		reach:     20,
		tick:      50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log15.New("module", "starbot", "user", userID)
	}
	return b
}

// BotOption configures a Bot
type BotOption func(*Bot)

// WithSpeed sets how far the bot moves per tick
func WithSpeed(s float64) BotOption {
	return func(b *Bot) { b.speed = s }
}

// WithTick sets the movement interval
func WithTick(d time.Duration) BotOption {
	return func(b *Bot) { b.tick = d }
}

// WithIdentityHeader sets the header carrying the user ID
func WithIdentityHeader(h string) BotOption {
	return func(b *Bot) { b.header = h }
}

// WithBotLogger sets the logger
func WithBotLogger(l log15.Logger) BotOption {
	return func(b *Bot) { b.logger = l }
}

// Result summarizes one bot's match.
type Result struct {
	UserID string
	Team   string
	Claims int
	Winner string
}

// Play connects, chases stars until the match ends or ctx is canceled, and
// reports what happened.
func (b *Bot) Play(ctx context.Context) (Result, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return Result{}, err
	}
	defer conn.Close()

	events := make(chan envelope, 64)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			var ev envelope
			if err := conn.ReadJSON(&ev); err != nil {
				readErr <- err
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return b.result(), ctx.Err()

		case ev, ok := <-events:
			if !ok {
				if b.result().Winner != "" {
					return b.result(), nil
				}
				return b.result(), fmt.Errorf("connection lost: %w", <-readErr)
			}
			if err := b.handle(ev); err != nil {
				b.logger.Debug("bad event", "event", ev.Event, "err", err)
			}
			if b.result().Winner != "" {
				return b.result(), nil
			}

		case <-ticker.C:
			for _, msg := range b.step() {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					return b.result(), fmt.Errorf("write: %w", err)
				}
			}
		}
	}
}

// dial connects with exponential backoff until ctx expires. A refused
// handshake (4xx) is final.
func (b *Bot) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(b.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	header := http.Header{}
	header.Set(b.header, b.userID)

	bo := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: true}
	for {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
		if err == nil {
			return conn, nil
		}
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, fmt.Errorf("server refused %s: %s", b.userID, resp.Status)
		}

		wait := bo.Duration()
		b.logger.Warn("dial failed", "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial: %w", err)
		case <-time.After(wait):
		}
	}
}

func (b *Bot) handle(ev envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Event {
	case "rosterSnapshot":
		var r roster
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			return err
		}
		b.id = r.You
		if me, ok := r.Players[r.You]; ok {
			b.team = me.Team
			b.pos = position{X: me.X, Y: me.Y}
		}
		b.logger.Info("joined", "player", b.id, "team", b.team)

	case "starLocation":
		var s star
		if err := json.Unmarshal(ev.Data, &s); err != nil {
			return err
		}
		b.target = &s

	case "scoreUpdate":
		return json.Unmarshal(ev.Data, &b.score)

	case "matchOver":
		var m matchOver
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			return err
		}
		b.finished = &m
		b.logger.Info("match over", "winner", m.Winner, "team", b.team, "score_a", m.Score.TeamA, "score_b", m.Score.TeamB)
	}
	return nil
}

// step advances one tick and returns the frames to send.
func (b *Bot) step() []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.id == "" || b.target == nil || b.finished != nil {
		return nil
	}

	next, rotation := steer(b.pos, position{X: b.target.X, Y: b.target.Y}, b.speed)
	b.pos = next
	msgs := []any{map[string]any{
		"event": "movement",
		"data":  map[string]float64{"x": next.X, "y": next.Y, "rotation": rotation},
	}}

	if b.claimed != b.target.ID && distance(next, position{X: b.target.X, Y: b.target.Y}) <= b.reach {
		b.claimed = b.target.ID
		b.claims++
		msgs = append(msgs, map[string]any{
			"event": "claim",
			"data":  map[string]uint64{"starId": b.target.ID},
		})
	}
	return msgs
}

func (b *Bot) result() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := Result{UserID: b.userID, Team: b.team, Claims: b.claims}
	if b.finished != nil {
		r.Winner = b.finished.Winner
	}
	return r
}

// steer moves from toward to by at most speed and returns the new position
// and the heading in radians.
func steer(from, to position, speed float64) (position, float64) {
	dx, dy := to.X-from.X, to.Y-from.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return from, 0
	}
	rotation := math.Atan2(dy, dx)
	if d <= speed {
		return to, rotation
	}
	return position{X: from.X + dx/d*speed, Y: from.Y + dy/d*speed}, rotation
}

func distance(a, b position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
