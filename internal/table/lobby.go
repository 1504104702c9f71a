package table

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/peterkuimelis/cardrules/internal/game"
)

var (
	// ErrLobbyFull is returned when a waiting game has no free seat.
	ErrLobbyFull = errors.New("game is full")
	// ErrAlreadySeated is returned when a player joins a game twice.
	ErrAlreadySeated = errors.New("player already seated")
	// ErrNotHost is returned when someone other than the host manages a lobby.
	ErrNotHost = errors.New("only the host can do that")
	// ErrNoAI is returned when adding an AI seat to a game that does not allow them.
	ErrNoAI = errors.New("game does not allow AI players")
	// ErrNotWaiting is returned when joining a game that already started.
	ErrNotWaiting = errors.New("game is not waiting for players")
	// ErrNotEnoughPlayers is returned when starting a game with one seat.
	ErrNotEnoughPlayers = errors.New("need at least 2 players")
)

// StatusWaiting is the status of a game still gathering players.
const StatusWaiting = "waiting"

// OpenRequest describes a game that players join before it is dealt.
type OpenRequest struct {
	RuleSetID string `json:"rule_set_id"`
	HostID    string `json:"host_id"`
	// MaxPlayers defaults to the largest table the rule set can deal.
	MaxPlayers int    `json:"max_players,omitempty"`
	AllowAI    bool   `json:"allow_ai,omitempty"`
	GameID     string `json:"game_id,omitempty"` // generated when empty
}

// LobbySeat is one taken seat.
type LobbySeat struct {
	PlayerID string `json:"player_id"`
	AI       bool   `json:"ai,omitempty"`
}

// LobbyInfo describes a waiting game.
type LobbyInfo struct {
	GameID     string      `json:"game_id"`
	RuleSetID  string      `json:"rule_set_id"`
	HostID     string      `json:"host_id"`
	MaxPlayers int         `json:"max_players"`
	AllowAI    bool        `json:"allow_ai"`
	Status     string      `json:"status"`
	Seats      []LobbySeat `json:"seats"`
	CreatedAt  time.Time   `json:"created_at"`
}

// lobby is guarded by Manager.mu. Lobbies live in memory only; a restart
// drops games that were never started.
type lobby struct {
	info LobbyInfo
	ais  int
}

func (l *lobby) snapshot() LobbyInfo {
	info := l.info
	info.Seats = slices.Clone(l.info.Seats)
	return info
}

func (l *lobby) seated(playerID string) bool {
	return slices.ContainsFunc(l.info.Seats, func(s LobbySeat) bool { return s.PlayerID == playerID })
}

func (l *lobby) full() bool {
	return len(l.info.Seats) >= l.info.MaxPlayers
}

// Open creates a waiting game with the host in the first seat.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (LobbyInfo, error) {
	rs, err := m.RuleSet(ctx, req.RuleSetID)
	if err != nil {
		return LobbyInfo{}, err
	}
	if req.HostID == "" {
		return LobbyInfo{}, game.NewRuleError(game.ErrInvalidPlay, "host_id is required")
	}
	limit := rs.MaxPlayers()
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = limit
	}
	if maxPlayers < 2 || maxPlayers > limit {
		return LobbyInfo{}, game.NewRuleError(game.ErrInvalidPlay, "max_players must be between 2 and %d for %s", limit, rs.ID)
	}
	id := req.GameID
	if id == "" {
		id = uuid.NewString()
	}

	l := &lobby{info: LobbyInfo{
		GameID:     id,
		RuleSetID:  rs.ID,
		HostID:     req.HostID,
		MaxPlayers: maxPlayers,
		AllowAI:    req.AllowAI,
		Status:     StatusWaiting,
		Seats:      []LobbySeat{{PlayerID: req.HostID}},
		CreatedAt:  time.Now(),
	}}
	m.mu.Lock()
	_, live := m.tables[id]
	_, waiting := m.lobbies[id]
	if live || waiting {
		m.mu.Unlock()
		return LobbyInfo{}, fmt.Errorf("%s: %w", id, ErrGameExists)
	}
	m.lobbies[id] = l
	info := l.snapshot()
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{"game_id": id, "rule_set": rs.ID, "host": req.HostID}).Info("lobby opened")
	return info, nil
}

// Join takes a free seat in a waiting game.
func (m *Manager) Join(id, playerID string) (LobbyInfo, error) {
	if playerID == "" {
		return LobbyInfo{}, game.NewRuleError(game.ErrInvalidPlay, "player is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.lobbyLocked(id)
	if err != nil {
		return LobbyInfo{}, err
	}
	switch {
	case l.seated(playerID):
		return LobbyInfo{}, fmt.Errorf("%s in %s: %w", playerID, id, ErrAlreadySeated)
	case l.full():
		return LobbyInfo{}, fmt.Errorf("%s: %w", id, ErrLobbyFull)
	}
	l.info.Seats = append(l.info.Seats, LobbySeat{PlayerID: playerID})
	m.log.WithFields(logrus.Fields{"game_id": id, "player_id": playerID}).Info("player joined")
	return l.snapshot(), nil
}

// AddAI seats an AI player. Only the host may add one.
func (m *Manager) AddAI(id, requesterID string) (LobbyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.lobbyLocked(id)
	if err != nil {
		return LobbyInfo{}, err
	}
	switch {
	case requesterID != l.info.HostID:
		return LobbyInfo{}, fmt.Errorf("add ai to %s: %w", id, ErrNotHost)
	case !l.info.AllowAI:
		return LobbyInfo{}, fmt.Errorf("%s: %w", id, ErrNoAI)
	case l.full():
		return LobbyInfo{}, fmt.Errorf("%s: %w", id, ErrLobbyFull)
	}
	var name string
	for {
		l.ais++
		name = fmt.Sprintf("AI-%d", l.ais)
		if !l.seated(name) {
			break
		}
	}
	l.info.Seats = append(l.info.Seats, LobbySeat{PlayerID: name, AI: true})
	m.log.WithFields(logrus.Fields{"game_id": id, "player_id": name}).Info("ai player added")
	return l.snapshot(), nil
}

// Start deals a waiting game to its seats in join order. Only the host may
// start it. The lobby is gone once the table exists.
func (m *Manager) Start(ctx context.Context, id, requesterID string) (*Table, error) {
	m.mu.Lock()
	l, err := m.lobbyLocked(id)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if requesterID != l.info.HostID {
		m.mu.Unlock()
		return nil, fmt.Errorf("start %s: %w", id, ErrNotHost)
	}
	if len(l.info.Seats) < 2 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", id, ErrNotEnoughPlayers)
	}
	delete(m.lobbies, id)
	m.mu.Unlock()

	req := CreateRequest{RuleSetID: l.info.RuleSetID, GameID: id}
	for _, s := range l.info.Seats {
		req.Players = append(req.Players, s.PlayerID)
		if s.AI {
			req.AI = append(req.AI, s.PlayerID)
		}
	}
	t, err := m.Create(ctx, req)
	if err != nil {
		m.mu.Lock()
		m.lobbies[id] = l
		m.mu.Unlock()
		return nil, err
	}
	return t, nil
}

// Lobby describes one waiting game.
func (m *Manager) Lobby(id string) (LobbyInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, err := m.lobbyLocked(id)
	if err != nil {
		return LobbyInfo{}, err
	}
	return l.snapshot(), nil
}

// Lobbies lists the waiting games ordered by id.
func (m *Manager) Lobbies() []LobbyInfo {
	m.mu.RLock()
	out := make([]LobbyInfo, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		out = append(out, l.snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

func (m *Manager) lobbyLocked(id string) (*lobby, error) {
	if l, ok := m.lobbies[id]; ok {
		return l, nil
	}
	if _, ok := m.tables[id]; ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotWaiting)
	}
	return nil, fmt.Errorf("%s: %w", id, ErrGameNotFound)
}
