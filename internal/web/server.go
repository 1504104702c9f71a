// Package web serves games over HTTP and websocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/game"
	cardnet "github.com/peterkuimelis/cardrules/internal/net"
	"github.com/peterkuimelis/cardrules/internal/table"
)

// maxRuleSetBody caps uploaded rule-set documents.
const maxRuleSetBody = 1 << 20

// RuleSetInfo is the JSON summary of a rule set for /api/rulesets.
type RuleSetInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Variant     string `json:"variant"`
	DeckSize    int    `json:"deck_size"`
	MaxPlayers  int    `json:"max_players"`
}

// RuleSetSaver persists uploaded rule sets. *storage.Store implements it.
type RuleSetSaver interface {
	SaveRuleSet(ctx context.Context, rs *game.RuleSet) error
}

// Server is the cardrules HTTP and websocket server.
type Server struct {
	games *table.Manager
	hub   *Hub
	saver RuleSetSaver
	log   logrus.FieldLogger
	mux   *http.ServeMux
}

// NewServer creates a server for the games in mgr. hub must be one of the
// manager's publishers for websocket clients to see updates. saver may be nil.
func NewServer(mgr *table.Manager, hub *Hub, saver RuleSetSaver, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		games: mgr,
		hub:   hub,
		saver: saver,
		log:   logger,
		mux:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/rulesets", s.handleListRuleSets)
	s.mux.HandleFunc("GET /api/rulesets/{id}", s.handleGetRuleSet)
	s.mux.HandleFunc("POST /api/rulesets", s.handleUploadRuleSet)

	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("POST /api/games", s.handleCreateGame)
	s.mux.HandleFunc("GET /api/games/{id}", s.handleGetGame)
	s.mux.HandleFunc("POST /api/games/{id}/abandon", s.handleAbandon)
	s.mux.HandleFunc("POST /api/games/{id}/rounds", s.handleNewRound)
	s.mux.HandleFunc("GET /api/games/{id}/events", s.handleEvents)

	s.mux.HandleFunc("GET /api/lobbies", s.handleListLobbies)
	s.mux.HandleFunc("POST /api/lobbies", s.handleOpenLobby)
	s.mux.HandleFunc("GET /api/lobbies/{id}", s.handleGetLobby)
	s.mux.HandleFunc("POST /api/lobbies/{id}/join", s.handleJoinLobby)
	s.mux.HandleFunc("POST /api/lobbies/{id}/ai", s.handleAddAI)
	s.mux.HandleFunc("POST /api/lobbies/{id}/start", s.handleStartLobby)

	s.mux.HandleFunc("GET /ws/games/{id}", s.handleWebSocket)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// --- Rule sets ---

func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	var out []RuleSetInfo
	for _, rs := range s.games.RuleSets() {
		out = append(out, RuleSetInfo{
			ID:          rs.ID,
			Name:        rs.Name,
			Version:     rs.Version,
			Description: rs.Description,
			Variant:     rs.Variant.String(),
			DeckSize:    rs.DeckSize(),
			MaxPlayers:  rs.MaxPlayers(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := s.games.RuleSet(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// handleUploadRuleSet accepts a JSON or YAML rule set, chosen by
// Content-Type, and registers it.
func (s *Server) handleUploadRuleSet(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRuleSetBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, cardnet.ErrorMessage(err))
		return
	}
	format := "json"
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.Contains(ct, "yaml") {
		format = "yaml"
	}
	rs, err := game.ParseRuleSet(data, format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, cardnet.ErrorMessage(err))
		return
	}
	if s.saver != nil {
		if err := s.saver.SaveRuleSet(r.Context(), rs); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if err := s.games.Register(rs); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithField("rule_set", rs.ID).Info("rule set uploaded")
	writeJSON(w, http.StatusCreated, RuleSetInfo{
		ID:         rs.ID,
		Name:       rs.Name,
		Version:    rs.Version,
		Variant:    rs.Variant.String(),
		DeckSize:   rs.DeckSize(),
		MaxPlayers: rs.MaxPlayers(),
	})
}

// --- Games ---

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.games.List())
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req table.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, cardnet.ErrorMessage(err))
		return
	}
	t, err := s.games.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.View(""))
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	player := r.URL.Query().Get("player")
	if player != "" && !t.Seated(player) {
		writeJSON(w, http.StatusForbidden, cardnet.ServerMessage{Type: cardnet.TypeError, Error: "not seated: " + player})
		return
	}
	writeJSON(w, http.StatusOK, t.View(player))
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	out, err := t.Abandon(r.Context(), r.URL.Query().Get("reason"))
	s.writeOutcome(w, out, err)
}

func (s *Server) handleNewRound(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	out, err := t.NewRound(r.Context())
	s.writeOutcome(w, out, err)
}

// handleEvents returns the committed events of a game, oldest first. With
// ?after= only events past that sequence number are returned.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, cardnet.ServerMessage{Type: cardnet.TypeError, Error: "bad after: " + v})
			return
		}
		after = n
	}
	events, err := t.History(r.Context(), after)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) table(w http.ResponseWriter, r *http.Request) (*table.Table, bool) {
	t, err := s.games.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return t, true
}

// --- Lobbies ---

func (s *Server) handleListLobbies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.games.Lobbies())
}

func (s *Server) handleOpenLobby(w http.ResponseWriter, r *http.Request) {
	var req table.OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, cardnet.ErrorMessage(err))
		return
	}
	info, err := s.games.Open(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetLobby(w http.ResponseWriter, r *http.Request) {
	info, err := s.games.Lobby(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleJoinLobby(w http.ResponseWriter, r *http.Request) {
	info, err := s.games.Join(r.PathValue("id"), r.URL.Query().Get("player"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAddAI(w http.ResponseWriter, r *http.Request) {
	info, err := s.games.AddAI(r.PathValue("id"), r.URL.Query().Get("player"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleStartLobby deals a waiting game and answers with the spectator view.
func (s *Server) handleStartLobby(w http.ResponseWriter, r *http.Request) {
	t, err := s.games.Start(r.Context(), r.PathValue("id"), r.URL.Query().Get("player"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.View(""))
}

// --- WebSocket ---

// handleWebSocket seats a connection at a game. The client gets the current
// view, then every event and view the hub pushes, plus an outcome for each
// action it sends. Without a player the connection only watches.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	t, ok := s.table(w, r)
	if !ok {
		return
	}
	player := r.URL.Query().Get("player")
	if player != "" && !t.Seated(player) {
		http.Error(w, "not seated: "+player, http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow connections from any origin
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	logger := s.log.WithFields(logrus.Fields{"game_id": t.ID(), "player_id": player})

	sub := s.hub.Subscribe(t, player)
	defer s.hub.Unsubscribe(sub)

	if err := wsjson.Write(ctx, conn, cardnet.StateMessage(t.View(player))); err != nil {
		return
	}

	// Hub → client
	go func() {
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				cancel()
				return
			}
		}
	}()

	// Client → table
	for {
		var msg cardnet.ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				logger.WithError(err).Debug("websocket read")
			}
			return
		}
		reply := s.apply(ctx, t, player, msg)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return
		}
	}
}

func (s *Server) apply(ctx context.Context, t *table.Table, player string, msg cardnet.ClientMessage) cardnet.ServerMessage {
	if msg.Action == cardnet.ActionState {
		return cardnet.StateMessage(t.View(player))
	}
	if player == "" {
		return cardnet.ServerMessage{Type: cardnet.TypeError, Error: "spectators cannot act"}
	}
	out, err := cardnet.Apply(ctx, t, player, msg)
	if err != nil {
		return cardnet.ErrorMessage(err)
	}
	return cardnet.OutcomeMessage(out)
}

// --- Responses ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeOutcome(w http.ResponseWriter, out game.Outcome, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	switch {
	case out.Kind == game.ErrInternal:
		status = http.StatusInternalServerError
		s.log.WithField("kind", out.Kind.String()).Error(out.Message)
	case !out.Success:
		status = http.StatusConflict
	}
	writeJSON(w, status, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, table.ErrGameNotFound):
		status = http.StatusNotFound
	case errors.Is(err, table.ErrNotHost):
		status = http.StatusForbidden
	case errors.Is(err, table.ErrGameExists),
		errors.Is(err, table.ErrLobbyFull),
		errors.Is(err, table.ErrAlreadySeated),
		errors.Is(err, table.ErrNoAI),
		errors.Is(err, table.ErrNotWaiting),
		errors.Is(err, table.ErrNotEnoughPlayers):
		status = http.StatusConflict
	default:
		switch game.KindOf(err) {
		case game.ErrRuleSetNotFound:
			status = http.StatusNotFound
		case game.ErrNone, game.ErrInternal:
		default:
			status = http.StatusBadRequest
		}
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, cardnet.ErrorMessage(err))
}
