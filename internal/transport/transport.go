// Package transport implements the transport adapter (component I): a
// websocket listener running on its own goroutines, bridging to the
// single-threaded server loop through three thread-safe FIFO queues.
package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// InboundMessage is one decoded JSON frame received from a client.
type InboundMessage struct {
	ClientID uint64
	Data     []byte
}

// ConnectionEvent reports a client connecting or disconnecting.
type ConnectionEvent struct {
	ClientID  uint64
	Connected bool
}

// OutboundMessage is queued for delivery to a specific client, or to every
// connected client when Broadcast is true.
type OutboundMessage struct {
	ClientID  uint64
	Broadcast bool
	Data      []byte
}

// queue is a minimal thread-safe FIFO; Drain returns and clears its contents.
type queue[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *queue[T]) push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

func (q *queue[T]) drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	drained := q.items
	q.items = nil
	return drained
}

// Adapter owns the websocket listener, the client connection registry, and
// the three queues the server loop drains each tick.
type Adapter struct {
	log zerolog.Logger

	upgrader websocket.Upgrader

	inbound    queue[InboundMessage]
	connEvents queue[ConnectionEvent]
	outbound   queue[OutboundMessage]

	clientsMu sync.Mutex
	clients   map[uint64]*websocket.Conn
	nextID    uint64
}

// New builds an Adapter. CheckOrigin is permissive, matching a
// locally-bound development server; deployments behind a reverse proxy
// should terminate and re-check origin there.
func New(log zerolog.Logger) *Adapter {
	return &Adapter{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uint64]*websocket.Conn),
	}
}

// ServeHTTP upgrades the connection and spawns its read pump.
func (a *Adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	a.clientsMu.Lock()
	a.nextID++
	clientID := a.nextID
	a.clients[clientID] = conn
	a.clientsMu.Unlock()

	a.connEvents.push(ConnectionEvent{ClientID: clientID, Connected: true})

	go a.readPump(clientID, conn)
}

func (a *Adapter) readPump(clientID uint64, conn *websocket.Conn) {
	defer func() {
		conn.Close()
		a.clientsMu.Lock()
		delete(a.clients, clientID)
		a.clientsMu.Unlock()
		a.connEvents.push(ConnectionEvent{ClientID: clientID, Connected: false})
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		a.inbound.push(InboundMessage{ClientID: clientID, Data: data})
	}
}

// Send queues an outbound message for a single client.
func (a *Adapter) Send(clientID uint64, data []byte) {
	a.outbound.push(OutboundMessage{ClientID: clientID, Data: data})
}

// Broadcast queues an outbound message for every currently connected client.
func (a *Adapter) Broadcast(data []byte) {
	a.outbound.push(OutboundMessage{Broadcast: true, Data: data})
}

// Update is called once per server tick: it returns the inbound messages
// and connection events accumulated since the last call, and flushes any
// queued outbound messages to their destination connections.
func (a *Adapter) Update() ([]InboundMessage, []ConnectionEvent) {
	inbound := a.inbound.drain()
	events := a.connEvents.drain()

	for _, msg := range a.outbound.drain() {
		if msg.Broadcast {
			a.writeToAll(msg.Data)
			continue
		}
		a.writeToOne(msg.ClientID, msg.Data)
	}

	return inbound, events
}

func (a *Adapter) writeToOne(clientID uint64, data []byte) {
	a.clientsMu.Lock()
	conn, ok := a.clients[clientID]
	a.clientsMu.Unlock()
	if !ok {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		a.log.Debug().Err(err).Uint64("clientId", clientID).Msg("write failed")
	}
}

func (a *Adapter) writeToAll(data []byte) {
	a.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(a.clients))
	for _, conn := range a.clients {
		conns = append(conns, conn)
	}
	a.clientsMu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			a.log.Debug().Err(err).Msg("broadcast write failed")
		}
	}
}
