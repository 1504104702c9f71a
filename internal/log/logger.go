package log

import (
	"fmt"
	"io"
	"strings"
)

// EventLogger is the interface for logging game events.
type EventLogger interface {
	Log(event GameEvent)
	Events() []GameEvent
}

// --- MemoryLogger: stores events in memory for test assertions ---

type MemoryLogger struct {
	events []GameEvent
	seq    int
}

func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) Log(event GameEvent) {
	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)
}

func (l *MemoryLogger) Events() []GameEvent {
	return l.events
}

// EventsOfType returns all events matching the given type.
func (l *MemoryLogger) EventsOfType(t EventType) []GameEvent {
	var result []GameEvent
	for _, e := range l.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// LastEvent returns the most recent event, or a zero event if none.
func (l *MemoryLogger) LastEvent() GameEvent {
	if len(l.events) == 0 {
		return GameEvent{}
	}
	return l.events[len(l.events)-1]
}

// Since returns the events logged after sequence number seq.
func (l *MemoryLogger) Since(seq int) []GameEvent {
	for i, e := range l.events {
		if e.Seq > seq {
			return l.events[i:]
		}
	}
	return nil
}

// --- TextLogger: writes human-readable lines to an io.Writer ---

type TextLogger struct {
	MemoryLogger
	w io.Writer
}

func NewTextLogger(w io.Writer) *TextLogger {
	return &TextLogger{w: w}
}

func (l *TextLogger) Log(event GameEvent) {
	l.MemoryLogger.Log(event)
	fmt.Fprintln(l.w, FormatEvent(event))
}

// --- Formatting ---

// FormatEvent formats a single event as a human-readable line.
func FormatEvent(e GameEvent) string {
	phase := e.Phase
	// Pad phase to 18 chars for alignment
	for len(phase) < 18 {
		phase += " "
	}
	return fmt.Sprintf("R%d T%-3d %s| %s", e.Round, e.Turn, phase, e.Details)
}

// FormatAll formats all events as a multi-line string.
func FormatAll(events []GameEvent) string {
	var sb strings.Builder
	for _, e := range events {
		sb.WriteString(FormatEvent(e))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// --- Helper constructors for common events ---

func NewGameStartedEvent(players []string, first string, top string) GameEvent {
	return GameEvent{
		Turn:    1,
		Phase:   "awaiting_play",
		Player:  first,
		Type:    EventGameStarted,
		Card:    top,
		Details: fmt.Sprintf("=== Game started: %s; %s goes first, %s face up ===", strings.Join(players, ", "), first, top),
		Payload: map[string]any{"players": players, "first_player_id": first},
	}
}

func NewRoundStartedEvent(round int, first string) GameEvent {
	return GameEvent{
		Round:   round,
		Turn:    1,
		Phase:   "awaiting_play",
		Player:  first,
		Type:    EventRoundStarted,
		Details: fmt.Sprintf("=== Round %d (%s first) ===", round, first),
	}
}

func NewCardPlayedEvent(turn int, phase string, player string, card string, handLeft int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventCardPlayed,
		Card:    card,
		Details: fmt.Sprintf("%s plays %s (%d left)", player, card, handLeft),
		Payload: map[string]any{"hand_count": handLeft},
	}
}

func NewCardDrawnEvent(turn int, phase string, player string, count int, reason string) GameEvent {
	d := fmt.Sprintf("%s draws %d", player, count)
	if reason != "" {
		d += " (" + reason + ")"
	}
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventCardDrawn,
		Details: d,
		Payload: map[string]any{"count": count, "reason": reason},
	}
}

func NewTurnChangedEvent(turn int, player string, direction string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "awaiting_play",
		Player:  player,
		Type:    EventTurnChanged,
		Details: fmt.Sprintf("--- Turn %d: %s (%s) ---", turn, player, direction),
		Payload: map[string]any{"direction": direction},
	}
}

func NewGameEndedEvent(turn int, winner string, scores map[string]int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "game_over",
		Player:  winner,
		Type:    EventGameEnded,
		Details: fmt.Sprintf("%s wins", winner),
		Payload: map[string]any{"winner_id": winner, "scores": scores},
	}
}

func NewGameAbandonedEvent(turn int, reason string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "game_over",
		Type:    EventGameAbandoned,
		Details: fmt.Sprintf("Game abandoned (%s)", reason),
	}
}

func NewOneCardAnnouncedEvent(turn int, phase string, player string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventOneCardAnnounced,
		Details: fmt.Sprintf("%s announces one card", player),
	}
}

func NewEffectEvent(turn int, phase string, player string, card string, effect string, targets []string, amount int) GameEvent {
	d := fmt.Sprintf("%s: %s", card, effect)
	if len(targets) > 0 {
		d += " → " + strings.Join(targets, ", ")
	}
	if amount > 0 {
		d += fmt.Sprintf(" (%d)", amount)
	}
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventEffectApplied,
		Card:    card,
		Details: d,
		Payload: map[string]any{"effect": effect, "targets": targets, "amount": amount},
	}
}

func NewChainOpenedEvent(turn int, player string, card string, target string, amount int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "chain_resolution",
		Player:  player,
		Type:    EventChainOpened,
		Card:    card,
		Details: fmt.Sprintf("Chain opened by %s: %s faces %d", card, target, amount),
		Payload: map[string]any{"target_player_id": target, "amount": amount},
	}
}

func NewChainCounteredEvent(turn int, player string, card string, detail string, amount int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "chain_resolution",
		Player:  player,
		Type:    EventChainCountered,
		Card:    card,
		Details: fmt.Sprintf("%s counters with %s: %s", player, card, detail),
		Payload: map[string]any{"amount": amount},
	}
}

func NewChainResolvedEvent(turn int, target string, amount int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "chain_resolution",
		Player:  target,
		Type:    EventChainResolved,
		Details: fmt.Sprintf("Chain resolved: %s takes %d", target, amount),
		Payload: map[string]any{"target_player_id": target, "amount": amount},
	}
}

func NewPenaltyEvent(turn int, phase string, player string, amount int, reason string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Player:  player,
		Type:    EventPenaltyApplied,
		Details: fmt.Sprintf("%s penalised %d (%s)", player, amount, reason),
		Payload: map[string]any{"amount": amount, "reason": reason},
	}
}

func NewReshuffleEvent(turn int, phase string, size int) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   phase,
		Type:    EventDeckReshuffled,
		Details: fmt.Sprintf("Discards reshuffled into a draw pile of %d", size),
		Payload: map[string]any{"draw_pile_count": size},
	}
}

func NewDecisionRequiredEvent(turn int, player string, kind string, options []string) GameEvent {
	return GameEvent{
		Turn:    turn,
		Phase:   "awaiting_decision",
		Player:  player,
		Type:    EventDecisionRequired,
		Details: fmt.Sprintf("%s must decide: %s [%s]", player, kind, strings.Join(options, " | ")),
		Payload: map[string]any{"kind": kind, "options": options},
	}
}

func NewDecisionResolvedEvent(turn int, player string, kind string, answer string, defaulted bool) GameEvent {
	d := fmt.Sprintf("%s decided %s: %s", player, kind, answer)
	if defaulted {
		d += " (default)"
	}
	return GameEvent{
		Turn:    turn,
		Phase:   "awaiting_decision",
		Player:  player,
		Type:    EventDecisionResolved,
		Details: d,
		Payload: map[string]any{"kind": kind, "answer": answer, "defaulted": defaulted},
	}
}
