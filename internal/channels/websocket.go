package channels

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/crystaldolphin/murmur/internal/bus"
)

// Envelope types sent by the transcription client.
const (
	TypeTranscribedChunk = "TRANSCRIBED_CHUNK"
	TypeTranscribedData  = "TRANSCRIBED_DATA"
)

// SharedChatID is the conversation every WebSocket client feeds.
const SharedChatID = "default"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 16
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// parseEnvelope extracts the utterance from a client frame. ok is false for
// frames that carry nothing to answer.
func parseEnvelope(raw []byte) (msgType, text string, ok bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("websocket: malformed frame", "err", err)
		return "", "", false
	}
	switch env.Type {
	case TypeTranscribedChunk:
		var data struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			slog.Warn("websocket: malformed chunk", "err", err)
			return env.Type, "", false
		}
		text = strings.TrimSpace(data.Text)
	case TypeTranscribedData:
		var data struct {
			Chunks []struct {
				Text string `json:"text"`
			} `json:"chunks"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			slog.Warn("websocket: malformed transcription", "err", err)
			return env.Type, "", false
		}
		parts := make([]string, 0, len(data.Chunks))
		for _, c := range data.Chunks {
			if t := strings.TrimSpace(c.Text); t != "" {
				parts = append(parts, t)
			}
		}
		text = strings.Join(parts, " ")
	default:
		slog.Info("websocket: unknown message type", "type", env.Type)
		return env.Type, "", false
	}
	return env.Type, text, text != ""
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// WebSocketChannel accepts transcription clients, feeds their utterances
// into one shared session and broadcasts every response to all clients.
type WebSocketChannel struct {
	Base
	addr     string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewWebSocketChannel creates a channel listening on addr ("host:port").
func NewWebSocketChannel(addr string, b bus.Bus) *WebSocketChannel {
	return &WebSocketChannel{
		Base: NewBase(bus.ChannelWebSocket, b),
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Transcription clients run on arbitrary local origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (w *WebSocketChannel) Name() string { return string(bus.ChannelWebSocket) }

// Start serves WebSocket connections on the configured address until ctx
// is cancelled.
func (w *WebSocketChannel) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return err
	}
	return w.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (w *WebSocketChannel) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:     w.Handler(ctx),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	slog.Info("websocket: listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	w.closeAll()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// Handler upgrades requests to WebSocket connections. Connections end when
// ctx is cancelled.
func (w *WebSocketChannel) Handler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := w.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			slog.Warn("websocket: upgrade failed", "err", err)
			return
		}
		c := &wsClient{id: uuid.NewString()[:8], conn: conn, send: make(chan []byte, sendBuffer)}
		w.register(c)
		slog.Info("websocket: client connected", "client", c.id, "remote", r.RemoteAddr)

		go w.writePump(c)
		w.readPump(ctx, c)
	})
}

// Clients returns the number of connected clients.
func (w *WebSocketChannel) Clients() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.clients)
}

// Send broadcasts the response, encoded as a JSON string, to every client.
// A client whose buffer is full is disconnected.
func (w *WebSocketChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	payload, err := json.Marshal(msg.Content())
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		select {
		case c.send <- payload:
		default:
			slog.Warn("websocket: client too slow, dropping", "client", c.id)
			w.dropLocked(c)
		}
	}
	return nil
}

func (w *WebSocketChannel) register(c *wsClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clients[c] = struct{}{}
}

func (w *WebSocketChannel) unregister(c *wsClient) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropLocked(c)
}

func (w *WebSocketChannel) dropLocked(c *wsClient) {
	if _, ok := w.clients[c]; ok {
		delete(w.clients, c)
		close(c.send)
	}
}

func (w *WebSocketChannel) closeAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		w.dropLocked(c)
	}
}

func (w *WebSocketChannel) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		w.unregister(c)
		c.conn.Close()
		slog.Info("websocket: client disconnected", "client", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket: read error", "client", c.id, "err", err)
			}
			return
		}
		msgType, text, ok := parseEnvelope(raw)
		if !ok {
			continue
		}
		slog.Debug("websocket: utterance", "client", c.id, "type", msgType, "text", text)
		if err := w.HandleMessage(ctx, c.id, SharedChatID, text, map[string]any{"type": msgType}); err != nil {
			return
		}
	}
}

func (w *WebSocketChannel) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
