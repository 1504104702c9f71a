package net

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/peterkuimelis/cardrules/internal/game"
	"github.com/peterkuimelis/cardrules/internal/log"
)

// Client is a terminal REPL seated at one game over websocket.
type Client struct {
	conn     *websocket.Conn
	playerID string
	out      io.Writer
}

// GameURL builds the websocket URL for a game on a server base URL such as
// ws://localhost:8080.
func GameURL(base, gameID, playerID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/games/" + gameID
	u.RawQuery = url.Values{"player": {playerID}}.Encode()
	return u.String(), nil
}

// Connect dials the game and runs the REPL on in/out until the game ends,
// the user quits, or ctx is done.
func Connect(ctx context.Context, base, gameID, playerID string, in io.Reader, out io.Writer) error {
	u, err := GameURL(base, gameID, playerID)
	if err != nil {
		return err
	}
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.CloseNow()

	fmt.Fprintf(out, "Connected to %s as %s. Type 'help' for commands.\n", gameID, playerID)
	c := &Client{conn: conn, playerID: playerID, out: out}
	return c.RunREPL(ctx, in)
}

// RunREPL reads server messages in the background and sends one command per
// input line.
func (c *Client) RunREPL(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		for {
			var msg ServerMessage
			if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
				readErr <- err
				cancel()
				return
			}
			if c.render(msg) {
				readErr <- nil
				cancel()
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case err := <-readErr:
			if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				return fmt.Errorf("read message: %w", err)
			}
			c.conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case line, ok := <-lines:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "bye")
				return nil
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "quit", "exit":
				c.conn.Close(websocket.StatusNormalClosure, "bye")
				return nil
			case "help":
				c.printHelp()
				continue
			}
			msg, err := ParseCommand(line)
			if err != nil {
				fmt.Fprintln(c.out, err)
				continue
			}
			if err := wsjson.Write(ctx, c.conn, msg); err != nil {
				return fmt.Errorf("send %s: %w", msg.Action, err)
			}
		}
	}
}

// ParseCommand turns a REPL line into a client message:
//
//	play ID [suit=S] [option=N] [target=P] [uno]
//	draw | pass | uno | state
//	suit S | option N | target P
func ParseCommand(line string) (ClientMessage, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ClientMessage{}, errors.New("empty command")
	}
	arg := func() (string, error) {
		if len(fields) < 2 {
			return "", fmt.Errorf("%s needs an argument", fields[0])
		}
		return fields[1], nil
	}
	switch strings.ToLower(fields[0]) {
	case "play", "p":
		id, err := arg()
		if err != nil {
			return ClientMessage{}, err
		}
		n, err := strconv.Atoi(id)
		if err != nil {
			return ClientMessage{}, fmt.Errorf("card id must be a number: %q", id)
		}
		msg := ClientMessage{Action: ActionPlay, CardID: n}
		for _, f := range fields[2:] {
			if f == "uno" || f == "announce" {
				msg.Announce = true
				continue
			}
			k, v, ok := strings.Cut(f, "=")
			if !ok {
				return ClientMessage{}, fmt.Errorf("expected key=value, got %q", f)
			}
			if err := setAnswer(&msg.Answer, k, v); err != nil {
				return ClientMessage{}, err
			}
		}
		return msg, nil
	case "draw", "d":
		return ClientMessage{Action: ActionDraw}, nil
	case "pass":
		return ClientMessage{Action: ActionPass}, nil
	case "uno", "announce":
		return ClientMessage{Action: ActionAnnounce}, nil
	case "state", "s":
		return ClientMessage{Action: ActionState}, nil
	case "suit", "option", "target":
		v, err := arg()
		if err != nil {
			return ClientMessage{}, err
		}
		msg := ClientMessage{Action: ActionDecide}
		if err := setAnswer(&msg.Answer, fields[0], v); err != nil {
			return ClientMessage{}, err
		}
		return msg, nil
	}
	return ClientMessage{}, fmt.Errorf("unknown command %q", fields[0])
}

func setAnswer(a *game.Answer, key, value string) error {
	switch key {
	case "suit":
		a.Suit = value
	case "option":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("option must be a number: %q", value)
		}
		a.Option = &n
	case "target":
		a.PlayerID = value
	default:
		return fmt.Errorf("unknown answer %q", key)
	}
	return nil
}

// render prints one server message and reports whether the game is over.
func (c *Client) render(msg ServerMessage) bool {
	switch msg.Type {
	case TypeEvent:
		if ev := msg.Event; ev != nil {
			fmt.Fprintln(c.out, log.FormatEvent(*ev))
		}
	case TypeState:
		if msg.State != nil {
			c.renderState(msg.State)
			return msg.State.GameOver
		}
	case TypeOutcome:
		if o := msg.Outcome; o != nil && !o.Success {
			fmt.Fprintf(c.out, "rejected: %s %s\n", o.Kind, o.Message)
		} else if o != nil && o.Decision != nil {
			c.renderDecision(o.Decision)
		}
	case TypeError:
		fmt.Fprintf(c.out, "error: %s\n", msg.Error)
	}
	return false
}

func (c *Client) renderState(sv *game.StateView) {
	w := c.out
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════╗")
	top := "(empty)"
	if sv.DiscardTop != nil {
		top = sv.DiscardTop.Name
	}
	if sv.SuitOverride != "" {
		top += " → " + sv.SuitOverride
	}
	fmt.Fprintf(w, "║  Round %d  Turn %d  %s  Top: %s  Draw pile: %d\n",
		sv.Round, sv.Turn, sv.Direction, top, sv.DrawPileCount)
	for _, p := range sv.Players {
		marker := "  "
		if p.PlayerID == sv.CurrentPlayerID {
			marker = "▶ "
		}
		line := fmt.Sprintf("║ %s%-8s cards: %-2d score: %d", marker, p.PlayerID, p.HandCount, p.Score)
		if p.AnnouncedOneCard {
			line += "  (one card!)"
		}
		for _, r := range p.Revealed {
			line += "  [" + r.Name + "]"
		}
		fmt.Fprintln(w, line)
	}
	if ch := sv.Chain; ch != nil {
		fmt.Fprintf(w, "║  Chain on %s: %s faces %d card(s), %d counter(s)\n",
			ch.InitiatingRank, ch.TargetPlayerID, ch.PendingAmount, ch.Counters)
	}
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════╝")

	if sv.GameOver {
		fmt.Fprintln(w, "GAME OVER")
		if sv.WinnerID != "" {
			fmt.Fprintf(w, "Winner: %s\n", sv.WinnerID)
		}
		return
	}
	for _, p := range sv.Players {
		if p.PlayerID != c.playerID {
			continue
		}
		fmt.Fprint(w, "Hand: ")
		for _, cv := range p.Hand {
			mark := ""
			if cv.Playable {
				mark = "*"
			}
			fmt.Fprintf(w, "[%d] %s%s  ", cv.ID, cv.Name, mark)
		}
		fmt.Fprintln(w)
	}
	switch {
	case sv.Decision != nil:
		c.renderDecision(sv.Decision)
	case sv.WaitingOn != "":
		fmt.Fprintf(w, "Waiting for %s to decide\n", sv.WaitingOn)
	case sv.IsYourTurn:
		if sv.PlayAgain {
			fmt.Fprintln(w, "Your turn (play again)")
		} else {
			fmt.Fprintln(w, "Your turn")
		}
	default:
		fmt.Fprintf(w, "%s's turn\n", sv.CurrentPlayerID)
	}
}

func (c *Client) renderDecision(d *game.DecisionRequest) {
	fmt.Fprintf(c.out, "\n%s\n", d.Prompt)
	cmd := "target"
	switch d.Kind {
	case game.DecisionChooseSuit:
		cmd = "suit"
	case game.DecisionCounterOption:
		cmd = "option"
	}
	for i, o := range d.Options {
		if cmd == "option" {
			fmt.Fprintf(c.out, "  option %d: %s\n", i, o)
		} else {
			fmt.Fprintf(c.out, "  %s %s\n", cmd, o)
		}
	}
}

func (c *Client) printHelp() {
	fmt.Fprintln(c.out, `Commands:
  play ID [suit=S] [option=N] [target=P] [uno]   play a card (cards marked * are playable)
  draw                                            draw a card, or take an open chain
  pass                                            end your turn after drawing
  uno                                             announce your last card
  suit S | option N | target P                    answer a pending decision
  state                                           show the table
  quit`)
}
