package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campusgrid/campusgrid/pkg/gamestate"
	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/campusgrid/campusgrid/pkg/queue"
	"github.com/campusgrid/campusgrid/pkg/repositories"
	"github.com/campusgrid/campusgrid/pkg/session"
	"github.com/campusgrid/campusgrid/pkg/transition"
	"github.com/campusgrid/campusgrid/pkg/transport"
	"github.com/campusgrid/campusgrid/pkg/version"
	"github.com/google/uuid"
)

func main() {
	serverAddr := flag.String("server-addr", "ws://localhost:8888/ws", "Relay server address")
	playerID := flag.String("id", "", "Player ID (defaults to a random UUID)")
	isServer := flag.Bool("host", false, "Run as the peer-link host role")
	startMap := flag.String("start-map", "overworld", "Map to start on")
	hubMap := flag.String("hub-map", "hub", "Hub map ID")
	returnMap := flag.String("return-map", "overworld", "Map committed when transitioning to the hub")
	dbPath := flag.String("db-path", "", "Path to a sqlite database for snapshots (in-memory when empty)")
	resume := flag.Bool("resume", false, "Resume the previous session from the repository")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)

	log.Info("Starting client version %s", version.Get())
	ctx := context.Background()

	id := *playerID
	if id == "" {
		id = uuid.NewString()
	}

	var repository repositories.Repository
	if *dbPath != "" {
		repository, err = repositories.NewSQLiteRepository(ctx, *dbPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to open sqlite repository: %v", err))
		}
	} else {
		repository = repositories.NewInMemoryRepository()
	}
	defer repository.Close(ctx)

	table := transition.PointTable{}
	table.AddPoint(*startMap, gamestate.Position{X: 0, Y: 0}, *hubMap)
	table.AddPoint(*hubMap, gamestate.Position{X: 0, Y: 0}, *hubMap)

	messageQueue := queue.NewInMemoryQueue(1000)
	relay := transport.NewWSRelay(*serverAddr, messageQueue)

	sess, err := session.NewSession(session.NewSessionOptions{
		PlayerID:     id,
		IsServer:     *isServer,
		StartMap:     *startMap,
		HubMap:       *hubMap,
		ReturnMap:    *returnMap,
		Table:        table,
		Relay:        relay,
		MessageQueue: messageQueue,
		Repository:   repository,
		SaveInterval: 30 * time.Second,
		Callbacks: session.Callbacks{
			OnTransitionPending: func(targetMap string) {
				fmt.Printf("Transition available to %s (type 'confirm' to take it)\n", targetMap)
			},
			OnTransitionCommitted: func(newMap string) {
				fmt.Printf("Now on %s\n", newMap)
			},
			OnNotice: func(notice string) {
				fmt.Println(notice)
			},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create session: %v", err))
	}

	if *resume {
		if err := sess.Resume(ctx, nil); err != nil {
			panic(fmt.Sprintf("Failed to resume session: %v", err))
		}
	} else {
		if err := sess.Start(ctx); err != nil {
			panic(fmt.Sprintf("Failed to start session: %v", err))
		}
		if !*isServer {
			if err := sess.ConnectRelay(); err != nil {
				panic(fmt.Sprintf("Failed to connect to relay: %v", err))
			}
		}
	}
	defer sess.Stop()

	fmt.Println("Commands: move <dx> <dy>, pos, players, confirm, suspend, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "move":
			if len(fields) != 3 {
				fmt.Println("Usage: move <dx> <dy>")
				continue
			}
			dx, errX := strconv.Atoi(fields[1])
			dy, errY := strconv.Atoi(fields[2])
			if errX != nil || errY != nil {
				fmt.Println("Usage: move <dx> <dy>")
				continue
			}
			if err := sess.Move(dx, dy); err != nil {
				fmt.Printf("Move failed: %v\n", err)
			}
		case "pos":
			pos := sess.LocalPosition()
			fmt.Printf("(%d, %d) on %s\n", pos.X, pos.Y, sess.CurrentMap())
		case "players":
			players := sess.RemotePlayers()
			if len(players) == 0 {
				fmt.Println("No remote players")
				continue
			}
			for id, player := range players {
				fmt.Printf("%s: (%d, %d) on %s\n", id, player.Position.X, player.Position.Y, player.Map)
			}
		case "confirm":
			if err := sess.ConfirmTransition(); err != nil {
				fmt.Printf("Confirm failed: %v\n", err)
			}
		case "suspend":
			if _, err := sess.Suspend(ctx); err != nil {
				fmt.Printf("Suspend failed: %v\n", err)
				continue
			}
			fmt.Println("Session suspended (restart with -resume)")
			return
		case "quit":
			return
		default:
			fmt.Printf("Unknown command %q\n", fields[0])
		}
	}
}
