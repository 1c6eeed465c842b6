package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wyattkrebs/talespin-server/internal/cards"
	"github.com/wyattkrebs/talespin-server/internal/directory"
	apperrors "github.com/wyattkrebs/talespin-server/internal/errors"
	"github.com/wyattkrebs/talespin-server/internal/hub"
	"github.com/wyattkrebs/talespin-server/internal/logger"
	"github.com/wyattkrebs/talespin-server/internal/room"
	"github.com/wyattkrebs/talespin-server/internal/roomtoken"
)

// Handlers holds every dependency the HTTP front needs. It is the analog
// of the teacher's Handlers struct: one value threaded through Router(),
// with each route a bound method.
type Handlers struct {
	Directory *directory.Directory
	Hub       *hub.Hub
	Cards     cards.Registrar
	Log       logger.Logger
	BaseURL   string
}

func (h *Handlers) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.CreatorName == "" || req.CreatorToken == "" {
		respondError(w, BadRequest("creator_name and creator_token are required"))
		return
	}

	winCondition := room.WinCondition(req.WinCondition)
	switch winCondition {
	case room.WinPoints, room.WinCycles, room.WinCardsFinish:
	case "":
		winCondition = room.WinPoints
	default:
		respondError(w, BadRequest("unrecognized win_condition"))
		return
	}

	defaultWinPoints := req.DefaultWinPoints
	if defaultWinPoints <= 0 {
		defaultWinPoints = 10
	}

	code, _, err := h.Directory.Create(winCondition, req.CreatorName, req.CreatorToken, req.Password, defaultWinPoints)
	if err != nil {
		h.Log.Error("failed to create room", "error", err)
		respondError(w, InternalError(err))
		return
	}
	respondCreated(w, CreateRoomResponse{RoomID: code})
}

// handleExists takes a bare JSON string as its body (not an object), per
// the wire protocol's /exists convention.
func (h *Handlers) handleExists(w http.ResponseWriter, r *http.Request) {
	var code string
	if err := decodeJSON(r, &code); err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, h.Directory.Exists(code))
}

func (h *Handlers) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, mime, err := h.Cards.Bytes(id)
	if err != nil {
		respondError(w, apperrors.NotFoundf("card %q not found", id))
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(data)
}

func (h *Handlers) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	h.Hub.ServeWs(w, r)
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	summaries := h.Directory.Snapshot()
	rooms := make([]RoomStatsView, 0, len(summaries))
	for _, s := range summaries {
		rooms = append(rooms, RoomStatsView{
			RoomID:         s.Code,
			Stage:          s.Stage,
			ActivePlayers:  s.ActivePlayers,
			Connections:    s.Connections,
			LastAccessUnix: s.LastAccessUnix,
		})
	}
	respondOK(w, StatsResponse{
		ActiveRooms: len(summaries),
		Cards:       h.Cards.Len(),
		Rooms:       rooms,
	})
}

// handleRoomQR renders a PNG QR code encoding the join URL for a room, so
// a moderator can display it for players to scan. Supplemented feature
// adapted from the teacher's voter QR generation; the original server has
// no such endpoint.
func (h *Handlers) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !h.Directory.Exists(code) {
		respondError(w, apperrors.InvalidRoomID(code))
		return
	}

	joinURL := h.BaseURL + "/join/" + code
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		respondError(w, InternalError(err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

// handleGeneratePassword returns a fresh human-typeable room password, for
// clients that want to offer a "generate one for me" button when creating
// a private room.
func (h *Handlers) handleGeneratePassword(w http.ResponseWriter, r *http.Request) {
	token, err := roomtoken.New()
	if err != nil {
		respondError(w, InternalError(err))
		return
	}
	respondOK(w, map[string]string{"password": token})
}
