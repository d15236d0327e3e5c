package socket

import (
	"context"
	"encoding/json"
	"time"

	"writingstuff/pkg/logger"
	"writingstuff/pkg/metrics"
)

const (
	DocumentSavedType   = "DOCUMENT_SAVED"   // Content persisted, new version
	DocumentDeletedType = "DOCUMENT_DELETED" // Document removed; the socket closes next
	IndexReadyType      = "INDEX_READY"      // Search index built for a version
	SummaryReadyType    = "SUMMARY_READY"    // Summary computed for a version
	CursorType          = "CURSOR"           // Session moved its cursor
	PresenceUpdateType  = "PRESENCE_UPDATE"  // A session joined or left
	MetadataType        = "METADATA"         // Document title/info
)

const (
	broadcastBuffer = 256
	// tombstoneTTL is how long a removed document keeps refusing sessions
	// that were authorized before the removal.
	tombstoneTTL = time.Minute
)

type WSMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"document_id"`
	UserID  string          `json:"user_id,omitempty"`
	Version int64           `json:"version,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// origin is the session that sent the message; it is not echoed back.
	origin *Client
}

type UserStatus struct {
	UserID    string    `json:"user_id"`
	CursorPos int       `json:"cursor_pos"`
	LastSeen  time.Time `json:"last_seen"`
}

// Authorizer checks that userID may open docID and returns its title.
// Errors follow pkg/apperror.
type Authorizer func(ctx context.Context, docID, userID string) (title string, err error)

// Hub fans document events out to the websocket sessions open on each
// document. All room state is owned by the Run goroutine.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Presence   map[string]map[*Client]UserStatus // docID -> session -> status
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client

	// AllowedOrigins lists the browser origins that may open sessions.
	// "*" allows any origin.
	AllowedOrigins []string

	removals  chan string
	removed   map[string]time.Time
	done      chan struct{}
	authorize Authorizer
}

func NewHub(authorize Authorizer) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Presence:   make(map[string]map[*Client]UserStatus),
		Broadcast:  make(chan WSMessage, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		removals:   make(chan string, broadcastBuffer),
		removed:    make(map[string]time.Time),
		done:       make(chan struct{}),
		authorize:  authorize,
	}
}

// Run processes hub events until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for docID := range h.Rooms {
				h.closeRoom(docID)
			}
			return

		case client := <-h.Register:
			if _, gone := h.removed[client.DocID]; gone {
				h.refuse(client)
				continue
			}
			if h.Rooms[client.DocID] == nil {
				h.Rooms[client.DocID] = make(map[*Client]bool)
				h.Presence[client.DocID] = make(map[*Client]UserStatus)
			}
			h.Rooms[client.DocID][client] = true
			h.Presence[client.DocID][client] = UserStatus{UserID: client.UserID, LastSeen: time.Now()}
			metrics.WSConnections.Inc()

			metaPayload, _ := json.Marshal(map[string]string{"title": client.Title})
			h.deliver(client, WSMessage{Type: MetadataType, DocID: client.DocID, UserID: client.UserID, Payload: metaPayload})
			h.broadcastPresenceUpdate(client.DocID)

		case client := <-h.Unregister:
			docID := client.DocID
			if h.removeClient(client) {
				h.broadcastPresenceUpdate(docID)
			}

		case docID := <-h.removals:
			now := time.Now()
			for id, at := range h.removed {
				if now.Sub(at) > tombstoneTTL {
					delete(h.removed, id)
				}
			}
			h.removed[docID] = now
			h.closeRoom(docID)

		case msg := <-h.Broadcast:
			if msg.Type == CursorType && msg.origin != nil {
				h.updateCursor(msg)
			}
			for client := range h.Rooms[msg.DocID] {
				if client != msg.origin {
					h.deliver(client, msg)
				}
			}
		}
	}
}

// Notify queues a server event for every session on docID. It never blocks;
// events are dropped with a warning when the hub is saturated.
func (h *Hub) Notify(eventType, docID, userID string, version int64) {
	msg := WSMessage{Type: eventType, DocID: docID, UserID: userID, Version: version}
	select {
	case h.Broadcast <- msg:
	default:
		logger.Sugar.Warnf("Hub saturated, dropping %s event for %s", eventType, docID)
	}
}

// RemoveDocument tells the sessions on docID that it was deleted and
// disconnects them.
func (h *Hub) RemoveDocument(docID string) {
	select {
	case h.removals <- docID:
	default:
		logger.Sugar.Warnf("Hub saturated, could not close sessions for %s", docID)
	}
}

func (h *Hub) closeRoom(docID string) {
	clients, ok := h.Rooms[docID]
	if !ok {
		return
	}
	for client := range clients {
		h.deliver(client, WSMessage{Type: DocumentDeletedType, DocID: docID})
		h.removeClient(client)
	}
	logger.Sugar.Infof("Closed sessions for document: %s", docID)
}

// refuse ends a session that registered after its document was removed.
func (h *Hub) refuse(client *Client) {
	payload, _ := json.Marshal(WSMessage{Type: DocumentDeletedType, DocID: client.DocID})
	select {
	case client.Send <- payload:
	default:
	}
	close(client.Send)
	logger.Sugar.Infof("Refused session for removed document: %s", client.DocID)
}

// removeClient drops client from its room and closes its send channel; the
// write pump then sends a close frame. It reports whether the client was
// still registered.
func (h *Hub) removeClient(client *Client) bool {
	if _, ok := h.Rooms[client.DocID][client]; !ok {
		return false
	}
	delete(h.Rooms[client.DocID], client)
	delete(h.Presence[client.DocID], client)
	close(client.Send)
	metrics.WSConnections.Dec()

	if len(h.Rooms[client.DocID]) == 0 {
		delete(h.Rooms, client.DocID)
		delete(h.Presence, client.DocID)
		logger.Sugar.Infof("Closed and cleaned up empty room: %s", client.DocID)
	}
	return true
}

// deliver queues msg on the client's buffer. A client whose buffer is full is
// lagging and gets disconnected rather than stalling the hub.
func (h *Hub) deliver(client *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s message: %v", msg.Type, err)
		return
	}
	select {
	case client.Send <- payload:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
		docID := client.DocID
		if h.removeClient(client) {
			h.broadcastPresenceUpdate(docID)
		}
	}
}

func (h *Hub) updateCursor(msg WSMessage) {
	var cursor struct {
		Pos int `json:"pos"`
	}
	if err := json.Unmarshal(msg.Payload, &cursor); err != nil {
		return
	}
	if room, ok := h.Presence[msg.DocID]; ok {
		if _, ok := room[msg.origin]; ok {
			room[msg.origin] = UserStatus{UserID: msg.UserID, CursorPos: cursor.Pos, LastSeen: time.Now()}
		}
	}
}

func (h *Hub) broadcastPresenceUpdate(docID string) {
	room := h.Presence[docID]
	if len(room) == 0 {
		return
	}
	statuses := make([]UserStatus, 0, len(room))
	for _, status := range room {
		statuses = append(statuses, status)
	}
	payload, err := json.Marshal(statuses)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}

	msg := WSMessage{Type: PresenceUpdateType, DocID: docID, Payload: payload}
	for client := range h.Rooms[docID] {
		h.deliver(client, msg)
	}
}
