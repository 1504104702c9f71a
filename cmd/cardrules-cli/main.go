package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/peterkuimelis/cardrules/internal/game"
	cardnet "github.com/peterkuimelis/cardrules/internal/net"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "validate":
		runValidate(os.Args[2:])
	case "simulate":
		runSimulate(os.Args[2:])
	case "join":
		runJoin(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cardrules-cli validate FILE...")
	fmt.Println("  cardrules-cli simulate [-rules uno] [-players 4] [-seed 7] [-max 5000] [-random]")
	fmt.Println("  cardrules-cli join [-url ws://localhost:8080] -game ID -player P1")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate  Check rule-set files (JSON or YAML)")
	fmt.Println("  simulate  Auto-play a whole game and print the event log")
	fmt.Println("  join      Take a seat in a game on a server")
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	failed := false
	for _, path := range fs.Args() {
		rs, err := game.LoadRuleSetFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: ok (%s %q, %s variant, %d cards, up to %d players)\n",
			path, rs.ID, rs.Name, rs.Variant, rs.DeckSize(), rs.MaxPlayers())
	}
	if failed {
		os.Exit(1)
	}
}

func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	rules := fs.String("rules", "uno", "built-in rule set id or rule-set file")
	players := fs.Int("players", 4, "number of players")
	seed := fs.Int64("seed", 0, "shuffle seed (0 for random)")
	maxActions := fs.Int("max", 5000, "give up after this many actions")
	random := fs.Bool("random", false, "answer decisions at random instead of with the defaults")
	fs.Parse(args)

	var decider game.DecisionProvider = game.DefaultDecider{}
	if *random {
		decider = game.RandomDecider{Rand: rand.New(rand.NewSource(*seed))}
	}

	rs, err := resolveRules(*rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	gs, err := simulate(context.Background(), rs, *players, *seed, *maxActions, decider, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printScores(os.Stdout, gs)
}

func runJoin(args []string) {
	fs := flag.NewFlagSet("join", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080", "server URL")
	gameID := fs.String("game", "", "game id")
	player := fs.String("player", "", "player id to play as (empty to watch)")
	fs.Parse(args)
	if *gameID == "" {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cardnet.Connect(ctx, *url, *gameID, *player, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
