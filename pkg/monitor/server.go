// Package monitor is the exchange's optional read-only observability
// feed: a WebSocket hub that mirrors the incremental market-data stream
// (not the snapshot stream) to any human watching a browser, entirely
// outside the matching hot path. A hub/broadcast/client pattern trimmed
// to read-only fan-out — no subscription management, no inbound client
// protocol — since this feed is a mirror, not a trading channel.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/luxfi/xchange/pkg/telemetry/log"
	"github.com/luxfi/xchange/pkg/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// update is the JSON shape broadcast to every connected client.
type update struct {
	Type      string `json:"type"`
	TickerId  uint32 `json:"tickerId"`
	OrderId   uint64 `json:"orderId,omitempty"`
	Side      string `json:"side,omitempty"`
	Price     int64  `json:"price,omitempty"`
	Qty       uint32 `json:"qty,omitempty"`
	NSeq      uint64 `json:"nSeq"`
	Timestamp int64  `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is a read-only WebSocket broadcast hub over /ws.
type Server struct {
	logger log.Logger

	clients   map[*client]bool
	clientsMu sync.RWMutex
	register  chan *client
	unregister chan *client
	broadcast chan []byte

	messagesOut atomic.Uint64

	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer constructs a monitor Server; call Start to begin serving.
func NewServer(logger log.Logger) *Server {
	return &Server{
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan []byte, 1024),
		done:       make(chan struct{}),
	}
}

// Handler returns the mux to mount at /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start serves /ws on addr and spins the hub goroutine.
func (s *Server) Start(addr string) {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}

	s.wg.Add(1)
	go s.runHub()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("monitor: server failed: %v", err)
		}
	}()
}

// Stop closes the HTTP listener, disconnects every client, and joins
// the hub goroutine.
func (s *Server) Stop() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	close(s.done)
	s.wg.Wait()
}

// PublishUpdate mirrors one MarketUpdate to every connected client. It
// never blocks the matching/market-data path: a full broadcast channel
// silently drops the update, since this feed is observational only.
func (s *Server) PublishUpdate(u wire.MarketUpdate) {
	payload, err := json.Marshal(update{
		Type:      u.Type.String(),
		TickerId:  uint32(u.TickerId),
		OrderId:   uint64(u.OrderId),
		Side:      u.Side.String(),
		Price:     int64(u.Price),
		Qty:       uint32(u.Qty),
		NSeq:      u.NSeq,
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		s.logger.Warn("monitor: marshal update: %v", err)
		return
	}
	select {
	case s.broadcast <- payload:
	default:
		s.logger.Warn("monitor: broadcast channel full, dropping update")
	}
}

func (s *Server) runHub() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			s.clientsMu.Lock()
			for c := range s.clients {
				close(c.send)
			}
			s.clientsMu.Unlock()
			return

		case c := <-s.register:
			s.clientsMu.Lock()
			s.clients[c] = true
			s.clientsMu.Unlock()

		case c := <-s.unregister:
			s.clientsMu.Lock()
			if _, ok := s.clients[c]; ok {
				delete(s.clients, c)
				close(c.send)
			}
			s.clientsMu.Unlock()

		case payload := <-s.broadcast:
			s.clientsMu.RLock()
			for c := range s.clients {
				select {
				case c.send <- payload:
				default:
					// slow reader: drop rather than block the hub.
				}
			}
			s.clientsMu.RUnlock()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("monitor: upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 256)}
	s.register <- c
	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	n := len(s.clients)
	s.clientsMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"clients":  n,
		"messages": s.messagesOut.Load(),
	})
}

// readPump discards any inbound client traffic (the feed is read-only)
// and solely waits for the socket to close.
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			s.messagesOut.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
