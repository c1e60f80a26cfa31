package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/storage"
)

const (
	peerSendChSize   = 64
	peerWriteTimeout = 10 * time.Second
)

type (
	// Hub is the realtime channel: peers join list rooms and receive the list deltas.
	Hub struct {
		sync.Mutex
		// Config
		tokens   *TokenIssuer
		store    *storage.Store
		upgrader websocket.Upgrader
		// State
		rooms map[model.ListId]map[*peer]struct{}
	}

	// peer is a single websocket connection.
	peer struct {
		userId model.UserId
		conn   *websocket.Conn
		// Guarded by Hub lock
		rooms  map[model.ListId]struct{}
		sendCh chan []byte
	}
)

// ServeHTTP upgrades the connection and serves the peer until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userId, err := h.tokens.VerifyRequest(r)
	if err != nil {
		writeMessage(w, http.StatusForbidden, "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Hub: upgrade: %v", err)
		return
	}

	p := &peer{
		userId: userId,
		conn:   conn,
		rooms:  make(map[model.ListId]struct{}),
		sendCh: make(chan []byte, peerSendChSize),
	}
	log.Printf("Hub: peer %s: connected", userId)

	go p.writePump()
	h.readPump(p)
}

// Broadcast sends the delta to every room peer and returns the number of recipients.
func (h *Hub) Broadcast(listId model.ListId, d model.Delta) (int, error) {
	e, err := model.EnvelopeFromDelta(d)
	if err != nil {
		return 0, err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("%s: JSON marshal: %w", e.Event, err)
	}

	h.Lock()
	defer h.Unlock()

	sent := 0
	for p := range h.rooms[listId] {
		select {
		case p.sendCh <- raw:
			sent++
		default:
			log.Printf("Hub: peer %s: send queue is full, dropping %s", p.userId, d.String())
		}
	}

	return sent, nil
}

// CloseRoom removes all peers from the room.
func (h *Hub) CloseRoom(listId model.ListId) {
	h.Lock()
	defer h.Unlock()

	for p := range h.rooms[listId] {
		delete(p.rooms, listId)
	}
	delete(h.rooms, listId)
}

// RoomSize returns the number of room peers.
func (h *Hub) RoomSize(listId model.ListId) int {
	h.Lock()
	defer h.Unlock()

	return len(h.rooms[listId])
}

// readPump handles room membership events until the connection fails.
func (h *Hub) readPump(p *peer) {
	defer func() {
		h.Lock()
		for listId := range p.rooms {
			h.leave(p, listId)
		}
		close(p.sendCh)
		h.Unlock()

		log.Printf("Hub: peer %s: disconnected", p.userId)
	}()

	for {
		e := model.Envelope{}
		if err := p.conn.ReadJSON(&e); err != nil {
			return
		}

		var listId model.ListId
		if err := json.Unmarshal(e.Data, &listId); err != nil || listId == "" {
			log.Printf("Hub: peer %s: %s: invalid list id", p.userId, e.Event)
			continue
		}

		switch e.Event {
		case model.JoinListEvent:
			// Non-members can not listen to the list
			if !h.store.IsMember(p.userId, listId) {
				log.Printf("Hub: peer %s: %s: not a member of list %s", p.userId, e.Event, listId)
				continue
			}
			h.Lock()
			h.join(p, listId)
			h.Unlock()
		case model.LeaveListEvent:
			h.Lock()
			h.leave(p, listId)
			h.Unlock()
		default:
			log.Printf("Hub: peer %s: unsupported event: %s", p.userId, e.Event)
		}
	}
}

// join must be called under lock.
func (h *Hub) join(p *peer, listId model.ListId) {
	room, found := h.rooms[listId]
	if !found {
		room = make(map[*peer]struct{})
		h.rooms[listId] = room
	}
	room[p] = struct{}{}
	p.rooms[listId] = struct{}{}
}

// leave must be called under lock.
func (h *Hub) leave(p *peer, listId model.ListId) {
	delete(p.rooms, listId)

	room := h.rooms[listId]
	delete(room, p)
	if len(room) == 0 {
		delete(h.rooms, listId)
	}
}

// writePump writes queued events until the send queue is closed.
func (p *peer) writePump() {
	defer p.conn.Close()

	for msg := range p.sendCh {
		p.conn.SetWriteDeadline(time.Now().Add(peerWriteTimeout))
		if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("Hub: peer %s: write: %v", p.userId, err)
			return
		}
	}

	p.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(peerWriteTimeout))
}

// NewHub creates a new Hub object.
func NewHub(tokens *TokenIssuer, store *storage.Store) (*Hub, error) {
	if tokens == nil {
		return nil, fmt.Errorf("%s: nil", "tokens")
	}
	if store == nil {
		return nil, fmt.Errorf("%s: nil", "store")
	}

	return &Hub{
		tokens: tokens,
		store:  store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		rooms: make(map[model.ListId]map[*peer]struct{}),
	}, nil
}
