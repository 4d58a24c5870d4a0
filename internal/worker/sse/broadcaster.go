// Package sse pushes state changes to connected observers as Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	// WriteTimeout is the timeout for writing to SSE clients.
	// Prevents blocking on stale connections.
	WriteTimeout = 2 * time.Second

	// KeepAliveInterval is how often an idle stream gets a comment line.
	KeepAliveInterval = 25 * time.Second
)

// Event types pushed to observers.
const (
	EventConnected      = "connected"
	EventState          = "state"
	EventSessionStarted = "session_started"
	EventSessionStopped = "session_stopped"
	EventSettings       = "settings"
	EventHistory        = "history"
)

// Event is one named message.
type Event struct {
	Data any    `json:"data"`
	Type string `json:"type"`
}

// Client represents a connected SSE client.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	writeMu sync.Mutex
	once    sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.Done) })
}

// Broadcaster manages SSE client connections and message broadcasting.
type Broadcaster struct {
	clients map[string]*Client
	// Snapshot, when set, provides the event sent to a client right after it connects.
	Snapshot func() Event
	mu       sync.RWMutex
	nextID   int
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient adds a new SSE client connection.
func (b *Broadcaster) AddClient(w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("client-%d", b.nextID)
	client := &Client{
		ID:      id,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	b.clients[id] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient removes a client connection.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.mu.Lock()
	delete(b.clients, client.ID)
	clientCount := len(b.clients)
	b.mu.Unlock()

	client.close()

	log.Debug().
		Str("clientId", client.ID).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// CloseAll ends every open stream so HTTP shutdown does not wait on them.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*Client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Publish sends a typed event to all connected clients.
func (b *Broadcaster) Publish(eventType string, data any) {
	b.Broadcast(Event{Type: eventType, Data: data})
}

// Broadcast sends ev to all connected clients.
// Writes run concurrently with a per-client timeout; clients that fail are dropped.
func (b *Broadcaster) Broadcast(ev Event) {
	message, err := encode(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("Failed to marshal SSE data")
		return
	}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	deadClientsCh := make(chan string, len(clients))
	var wg sync.WaitGroup

	for _, client := range clients {
		select {
		case <-client.Done:
			continue
		default:
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				b.writeToClient(c, message, deadClientsCh)
			}(client)
		}
	}

	wg.Wait()
	close(deadClientsCh)

	for clientID := range deadClientsCh {
		b.removeClientByID(clientID)
	}
}

func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload)), nil
}

func (b *Broadcaster) removeClientByID(id string) {
	b.mu.Lock()
	client, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	clientCount := len(b.clients)
	b.mu.Unlock()

	if exists {
		client.close()
	}

	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("Dead SSE client removed")
}

// writeToClient writes a message to a single client with timeout.
// Only this function sends to deadCh, at most once per call.
func (b *Broadcaster) writeToClient(client *Client, message []byte, deadCh chan<- string) {
	errc := make(chan error, 1)

	go func() {
		errc <- client.write(message)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Debug().
				Str("clientId", client.ID).
				Err(err).
				Msg("Failed to write to SSE client, marking for removal")
			deadCh <- client.ID
		}
	case <-time.After(WriteTimeout):
		log.Warn().
			Str("clientId", client.ID).
			Dur("timeout", WriteTimeout).
			Msg("SSE write timed out, marking client for removal")
		deadCh <- client.ID
	case <-client.Done:
	}
}

// write serializes writes so concurrent broadcasts never interleave on one stream.
func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.Writer.Write(message); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE handles an SSE connection request.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	hello, _ := encode(Event{Type: EventConnected, Data: map[string]string{"clientId": client.ID}})
	if err := client.write(hello); err != nil {
		return
	}
	if b.Snapshot != nil {
		if msg, err := encode(b.Snapshot()); err == nil {
			_ = client.write(msg)
		}
	}

	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done:
			return
		case <-ticker.C:
			if err := client.write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
		}
	}
}
