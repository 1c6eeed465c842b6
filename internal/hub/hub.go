// Package hub is the connection layer (component F): it upgrades HTTP
// requests to websockets, resolves the first message as a room join
// handshake, and from then on ferries ClientMessage/ServerMessage frames
// between a session and the room engine. It implements room.EventSink so
// the engine never needs to know a session exists.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wyattkrebs/talespin-server/internal/directory"
	apperrors "github.com/wyattkrebs/talespin-server/internal/errors"
	"github.com/wyattkrebs/talespin-server/internal/logger"
	"github.com/wyattkrebs/talespin-server/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub owns every live session, keyed by room code then member name, and is
// the room engine's EventSink.
type Hub struct {
	log       logger.Logger
	directory *directory.Directory

	mu       sync.RWMutex
	sessions map[string]map[string]*Session // roomCode -> memberName -> session
}

// New constructs a Hub with no directory bound yet. Hub and Directory
// reference each other (the directory hands rooms an EventSink that is
// this Hub; the Hub looks rooms up in the directory), so wiring binds them
// together after both are constructed via BindDirectory.
func New(log logger.Logger) *Hub {
	return &Hub{
		log:      log,
		sessions: make(map[string]map[string]*Session),
	}
}

// BindDirectory completes construction; it must be called once, before
// ServeWs starts accepting connections.
func (h *Hub) BindDirectory(d *directory.Directory) {
	h.directory = d
}

// Session is a single client connection, bound to a room member once the
// join handshake completes.
type Session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan room.ServerMessage

	roomCode string
	member   string
	token    string
	joined   bool
}

// ServeWs upgrades the request and starts the session's pumps. The first
// client message must be JoinRoom; anything else closes the connection.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	s := &Session{
		hub:  h,
		conn: conn,
		send: make(chan room.ServerMessage, sendBufferSize),
	}

	go s.writePump()
	go s.readPump()
}

func (s *Session) readPump() {
	defer s.teardown()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg room.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.trySend(room.ServerMessage{ErrorMsg: &room.ErrorMsgPayload{Reason: "malformed message"}})
			return
		}

		if !s.joined {
			if msg.JoinRoom == nil {
				s.trySend(room.ServerMessage{ErrorMsg: &room.ErrorMsgPayload{Reason: "first message must be JoinRoom"}})
				return
			}
			if !s.handleJoin(msg.JoinRoom) {
				return
			}
			continue
		}

		if err := s.dispatch(msg); err != nil {
			s.trySend(room.ServerMessage{ErrorMsg: &room.ErrorMsgPayload{Reason: err.Error()}})
			if isIdentityFatal(err) {
				return
			}
		}
	}
}

// handleJoin resolves the room, admits the member, and registers the
// session. Returns false if the connection should be closed.
func (s *Session) handleJoin(p *room.JoinRoomPayload) bool {
	r, ok := s.hub.directory.Get(p.RoomID)
	if !ok {
		s.trySend(room.ServerMessage{InvalidRoomId: &struct{}{}})
		return false
	}

	if err := r.Join(p.Name, p.Token, p.RoomPassword); err != nil {
		s.trySend(room.ServerMessage{ErrorMsg: &room.ErrorMsgPayload{Reason: err.Error()}})
		return false
	}

	s.roomCode = p.RoomID
	s.member = p.Name
	s.token = p.Token
	s.joined = true

	s.hub.register(s)
	s.hub.directory.Touch(p.RoomID)
	return true
}

// dispatch maps one ClientMessage variant onto the bound room's command
// surface. Only the variant fields relevant post-join are handled here;
// JoinRoom after the handshake is a protocol error.
func (s *Session) dispatch(msg room.ClientMessage) error {
	s.hub.directory.Touch(s.roomCode)
	r, ok := s.hub.directory.Get(s.roomCode)
	if !ok {
		return apperrors.InvalidRoomID(s.roomCode)
	}

	switch {
	case msg.JoinRoom != nil:
		return apperrors.Validation("already joined")
	case msg.Ready != nil:
		return r.Ready(s.member)
	case msg.StartGame != nil:
		return r.StartGame(s.member)
	case msg.LeaveRoom != nil:
		r.Leave(s.member)
		return nil
	case msg.KickPlayer != nil:
		return r.Kick(s.member, msg.KickPlayer.Player)
	case msg.SetModerator != nil:
		return r.SetModerator(s.member, msg.SetModerator.Player, msg.SetModerator.Enabled)
	case msg.SetObserver != nil:
		return r.SetObserver(s.member, msg.SetObserver.Player, msg.SetObserver.Enabled)
	case msg.RequestJoinFromObserver != nil:
		return r.RequestJoinFromObserver(s.member)
	case msg.SetAllowMidgameJoin != nil:
		return r.SetAllowMidgameJoin(s.member, msg.SetAllowMidgameJoin.Enabled)
	case msg.SetStorytellerLossComplement != nil:
		return r.SetStorytellerLossComplement(s.member, msg.SetStorytellerLossComplement.Complement)
	case msg.SetVotesPerGuesser != nil:
		return r.SetVotesPerGuesser(s.member, msg.SetVotesPerGuesser.Votes)
	case msg.SetCardsPerHand != nil:
		return r.SetCardsPerHand(s.member, msg.SetCardsPerHand.Cards)
	case msg.SetNominationsPerGuesser != nil:
		return r.SetNominationsPerGuesser(s.member, msg.SetNominationsPerGuesser.Cards)
	case msg.ResumeGame != nil:
		return r.ResumeGame(s.member)
	case msg.ActivePlayerChooseCard != nil:
		return r.ActivePlayerChooseCard(s.member, msg.ActivePlayerChooseCard.Card, msg.ActivePlayerChooseCard.Description)
	case msg.PlayerChooseCards != nil:
		return r.PlayerChooseCards(s.member, msg.PlayerChooseCards.Cards)
	case msg.SubmitVotes != nil:
		return r.SubmitVotes(s.member, msg.SubmitVotes.Cards)
	default:
		return apperrors.Validation("empty message")
	}
}

// isIdentityFatal reports whether an error from dispatch should end the
// session outright rather than just notifying the sender, per the
// failure-semantics split between recoverable command errors and identity
// errors.
func isIdentityFatal(err error) bool {
	appErr, ok := err.(*apperrors.Error)
	if !ok {
		return false
	}
	switch appErr.Kind {
	case apperrors.ErrInvalidRoomID, apperrors.ErrNameAlreadyTaken, apperrors.ErrBadPassword:
		return true
	case apperrors.ErrInternalInvariant:
		panic(appErr)
	default:
		return false
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.hub.log.Error("failed to marshal server message", "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend attempts a non-blocking enqueue; a full buffer means the
// connection is unhealthy and about to be torn down anyway.
func (s *Session) trySend(msg room.ServerMessage) {
	select {
	case s.send <- msg:
	default:
	}
}

// teardown marks the member disconnected (never removed) when this session
// was actually the live one for its member. A session that lost a
// same-token supersede race (register already swapped in the new session
// before this one's connection dies) must not disconnect the member that
// superseded it.
func (s *Session) teardown() {
	s.conn.Close()
	if s.joined && s.hub.unregister(s) {
		if r, ok := s.hub.directory.Get(s.roomCode); ok {
			r.Disconnect(s.member)
		}
	}
}

// register binds a session into the hub, superseding (and closing) any
// prior session for the same room+member pair reconnecting with the same
// token.
func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byMember, ok := h.sessions[s.roomCode]
	if !ok {
		byMember = make(map[string]*Session)
		h.sessions[s.roomCode] = byMember
	}
	if old, exists := byMember[s.member]; exists && old != s {
		old.trySend(room.ServerMessage{SupersededBySameToken: &struct{}{}})
		close(old.send)
	}
	byMember[s.member] = s
}

// unregister removes s from the hub and reports whether s was actually the
// registered session for its member — false means a same-token supersede
// already replaced it, and the caller must not treat this as a departure.
func (h *Hub) unregister(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	byMember, ok := h.sessions[s.roomCode]
	if !ok {
		return false
	}
	current, exists := byMember[s.member]
	if !exists || current != s {
		return false
	}
	delete(byMember, s.member)
	if len(byMember) == 0 {
		delete(h.sessions, s.roomCode)
	}
	return true
}

// --- room.EventSink -----------------------------------------------------

var _ room.EventSink = (*Hub)(nil)

func (h *Hub) Broadcast(roomCode string, msg room.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions[roomCode] {
		s.trySend(msg)
	}
}

func (h *Hub) SendTo(roomCode, memberName string, msg room.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[roomCode][memberName]; ok {
		s.trySend(msg)
	}
}

func (h *Hub) CloseMember(roomCode, memberName string, msg room.ServerMessage) {
	h.mu.Lock()
	s, ok := h.sessions[roomCode][memberName]
	h.mu.Unlock()
	if !ok {
		return
	}
	s.trySend(msg)
	s.conn.Close()
}
