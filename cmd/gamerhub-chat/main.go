// Command gamerhub-chat is a terminal chat client for a GamerHub room
// channel. It authenticates with a device id, joins the room and relays
// lines from stdin until EOF or an interrupt.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	gamerhub "github.com/gamerhub/gamerhub-go"
	"github.com/gamerhub/gamerhub-go/store"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	deviceID := flag.String("device", "", "Device id to authenticate with")
	username := flag.String("username", "", "Username hint for first-time registration")
	room := flag.String("room", "global", "Room channel to join")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, *deviceID, *username, *room, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, deviceID, username, room string, logger *slog.Logger) error {
	var cfg *gamerhub.Config
	var err error
	if configPath != "" {
		cfg, err = gamerhub.Load(configPath)
	} else {
		cfg, err = gamerhub.ConfigFromEnv()
	}
	if err != nil {
		return err
	}

	sessionFile := cfg.SessionFile
	if sessionFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		sessionFile = filepath.Join(home, ".gamerhub", "session.yaml")
	}
	sessionStore, err := store.NewFile(sessionFile)
	if err != nil {
		return err
	}

	client, err := gamerhub.NewClient(cfg, sessionStore, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	session := client.Session()
	if !session.Authenticated() {
		if deviceID == "" {
			return fmt.Errorf("no stored session; -device is required to authenticate")
		}
		session, err = client.AuthenticateDevice(ctx, deviceID, true, username)
		if err != nil {
			return err
		}
	}
	fmt.Printf("signed in as %s\n", session.Username)

	socket := client.Socket()
	defer socket.Close()

	handle, err := socket.JoinChannel(ctx, room, gamerhub.ChannelKindRoom)
	if err != nil {
		return err
	}
	fmt.Printf("joined #%s\n", room)

	unsubscribe := socket.Subscribe(func(msg gamerhub.ChatMessage) {
		if msg.Sender.ID == session.UserID {
			return
		}
		fmt.Printf("[%s] %s: %s\n", msg.Timestamp.Format("15:04"), msg.Sender.Username, msg.Content)
	})
	defer unsubscribe()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if _, err := socket.SendMessage(ctx, handle.ID, line); err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
		}
	}
	return scanner.Err()
}
