package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"slotlock/pkg/logger"
	"slotlock/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Clients only listen.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The feed carries no secrets, only slot state.
		return true
	},
}

// feedMessage is the wire shape of one change event.
type feedMessage struct {
	Event   string       `json:"event"`
	Slots   []model.Slot `json:"slots"`
	Version uint64       `json:"version"`
}

// Client is one connected feed consumer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub streams the change feed to WebSocket clients. It subscribes to the
// ChangeNotifier via Notify and fans each event out to every connection;
// clients whose send buffer is full are dropped rather than allowed to stall
// the feed. Stale events are discarded before broadcast, and newly connected
// clients immediately receive the last broadcast state.
type Hub struct {
	clients    map[*Client]bool
	events     chan model.Snapshot
	register   chan *Client
	unregister chan *Client

	sendBuffer int
	log        *logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}

	// Loop-goroutine state.
	lastVersion uint64
	lastPayload []byte
}

func NewHub(sendBuffer int, log *logger.Logger) *Hub {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		events:     make(chan model.Snapshot, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sendBuffer: sendBuffer,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Start() {
	h.startOnce.Do(func() {
		go h.run()
	})
}

// Stop shuts the hub down and closes every client connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	h.startOnce.Do(func() {
		close(h.done)
	})
	<-h.done
}

// Notify implements notifier.Observer.
func (h *Hub) Notify(snap model.Snapshot) {
	select {
	case h.events <- snap:
	case <-h.done:
	}
}

// ServeWS upgrades an HTTP request to a feed connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			for client := range h.clients {
				h.dropClient(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			if h.lastPayload != nil {
				select {
				case client.send <- h.lastPayload:
				default:
				}
			}
			h.log.Debug("Feed client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			h.dropClient(client)

		case snap := <-h.events:
			h.broadcast(snap)
		}
	}
}

func (h *Hub) broadcast(snap model.Snapshot) {
	if snap.Version <= h.lastVersion {
		return
	}
	h.lastVersion = snap.Version

	payload, err := json.Marshal(feedMessage{
		Event:   "slots_changed",
		Slots:   snap.Slots,
		Version: snap.Version,
	})
	if err != nil {
		h.log.Error("Failed to marshal feed message", "error", err)
		return
	}
	h.lastPayload = payload

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Client can't keep up, cut it loose.
			h.dropClient(client)
		}
	}
}

func (h *Hub) dropClient(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.log.Debug("Feed client disconnected", "clients", len(h.clients))
	}
}

// readPump discards inbound messages and tears the client down when the
// connection dies. The feed is one-way; reads only service the pong handler.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pumps feed messages from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
