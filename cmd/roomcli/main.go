// roomcli joins a babelchat room from the terminal: lines typed on stdin are
// sent to the room, inbound messages are printed translated into the
// preferred language.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/babelchat/babelchat/internal/channel"
	"github.com/babelchat/babelchat/internal/guard"
	"github.com/babelchat/babelchat/internal/model/chat"
	"github.com/babelchat/babelchat/internal/session"
	"github.com/babelchat/babelchat/internal/translate"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "backend base URL")
	room := flag.String("room", "", "room id to join")
	name := flag.String("name", "", "display name")
	lang := flag.String("lang", "en", "preferred language (BCP-47)")
	stateFile := flag.String("state", defaultStatePath(), "path of the persisted flag store")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *room == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "usage: roomcli -room <id> -name <name> [-lang <tag>] [-server <url>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openFlagStore(*stateFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open flag store")
	}

	cache := translate.NewCache(*server, translate.WithLogger(log.Logger))
	ch := channel.NewWS(wsURL(*server), channel.WithLogger(log.Logger))
	defer ch.Close()

	ctrl := session.New(ch, cache, guard.New(store, log.Logger), *room, *lang,
		session.WithLogger(log.Logger),
		session.WithTranscriber(translate.NewTranscriber(*server, nil)),
		session.OnMessage(printMessage),
		session.OnTypers(printTypers),
	)
	if err := ctrl.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start session")
	}

	if !waitForChannel(ctx, ctrl) {
		return
	}
	if err := ctrl.Join(*name); err != nil {
		log.Fatal().Err(err).Msg("failed to join room")
	}

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			_ = ctrl.Leave()
			return
		case line, ok := <-lines:
			if !ok || line == "/leave" {
				_ = ctrl.Leave()
				return
			}
			ctrl.Keystroke()
			if err := ctrl.Send(line); err != nil {
				log.Warn().Err(err).Msg("send failed")
			}
		}
	}
}

// waitForChannel blocks until the channel comes up; the session stays in the
// pending Connecting state for as long as the dial keeps failing.
func waitForChannel(ctx context.Context, ctrl *session.Controller) bool {
	for ctrl.State() == chat.StateConnecting {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return true
}

func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out <- line
		}
	}
}

func printMessage(m chat.Message) {
	switch m.Kind {
	case chat.KindUser:
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Sender, m.Text)
	default:
		fmt.Printf("*** %s\n", m.Text)
	}
}

func printTypers(active []string) {
	if len(active) > 0 {
		fmt.Printf("... %s typing\n", strings.Join(active, ", "))
	}
}

func wsURL(server string) string {
	u := strings.TrimRight(server, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/api/ws"
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "babelchat-state.db"
	}
	return filepath.Join(home, ".babelchat", "state.db")
}

func openFlagStore(path string) (guard.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return guard.OpenBolt(path)
}
