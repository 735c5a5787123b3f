// Command tweetsmith is a terminal front end for the tweetsmith server: it keeps per-user chat
// history on the server and streams generated tweets as they arrive.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/kiraleos/tweetsmith/internal/chatui"
	"github.com/kiraleos/tweetsmith/internal/client"
	"github.com/kiraleos/tweetsmith/internal/core"
	"github.com/kiraleos/tweetsmith/internal/logger"
)

func main() {
	_ = godotenv.Load() // Load .env file if it exists

	serverURL := flag.String("server", envOr("TWEETSMITH_SERVER", "http://localhost:8080"), "Server base URL")
	token := flag.String("token", os.Getenv("TWEETSMITH_TOKEN"), "Bearer token (see the server's -issue-token flag)")
	chatID := flag.String("chat", "", "Open this chat instead of the most recent one")
	newChat := flag.Bool("new", false, "Start a new chat")
	list := flag.Bool("list", false, "List chat ids and exit")
	tone := flag.String("tone", "", "Tone: "+joined(core.Tones))
	goal := flag.String("goal", "", "Goal: "+joined(core.Goals))
	audience := flag.String("audience", "", "Audience: "+joined(core.Audiences))
	useWS := flag.Bool("ws", false, "Stream over WebSocket instead of a chunked response")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := "WARN"
	if *verbose {
		level = "DEBUG"
	}
	logger.Init(logger.Config{Level: level, Pretty: true, Output: os.Stderr})

	if *token == "" {
		log.Fatal().Msg("A token is required: pass -token or set TWEETSMITH_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []client.Option
	if *useWS {
		opts = append(opts, client.WithWebSocket())
	}
	c := client.New(*serverURL, *token, opts...)

	out := &printer{w: os.Stdout}
	ctrl := chatui.NewController(c, c, chatui.WithObserver(out.observe))

	if err := ctrl.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load chats")
	}

	if *list {
		for _, id := range ctrl.State().ChatIDs {
			fmt.Println(id)
		}
		return
	}

	switch {
	case *newChat:
		if _, err := ctrl.NewChat(); err != nil {
			log.Fatal().Err(err).Msg("Failed to create chat")
		}
	case *chatID != "":
		if err := ctrl.OpenChat(ctx, *chatID); err != nil {
			log.Fatal().Err(err).Msg("Failed to open chat")
		}
	}

	ctrl.SetPreferences(chatui.Preferences{
		Tone:     core.Tone(*tone),
		Goal:     core.Goal(*goal),
		Audience: core.Audience(*audience),
	})

	if st := ctrl.State(); st.Current != nil {
		fmt.Fprintf(os.Stderr, "chat %s\n", st.Current.ID)
		printHistory(os.Stdout, st)
	}

	if prompt := strings.TrimSpace(strings.Join(flag.Args(), " ")); prompt != "" {
		if err := submit(ctx, ctrl, prompt); err != nil {
			os.Exit(1)
		}
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		switch prompt {
		case "":
			continue
		case "/new":
			id, err := ctrl.NewChat()
			if err != nil {
				log.Error().Err(err).Msg("Failed to create chat")
				continue
			}
			fmt.Fprintf(os.Stderr, "chat %s\n", id)
			continue
		case "/quit":
			return
		}
		_ = submit(ctx, ctrl, prompt)
		if ctx.Err() != nil {
			return
		}
	}
}

func submit(ctx context.Context, ctrl *chatui.Controller, prompt string) error {
	err := ctrl.Submit(ctx, prompt)
	if err != nil {
		if errors.Is(err, core.ErrValidation) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			log.Error().Err(err).Msg("Generation failed")
		}
	}
	return err
}

// printer writes the streaming buffer to the terminal as it grows.
type printer struct {
	w     io.Writer
	shown string
}

func (p *printer) observe(s chatui.State) {
	switch s.Phase {
	case chatui.PhaseAwaiting:
		p.shown = ""
	case chatui.PhaseStreaming:
		fmt.Fprint(p.w, s.Buffer[len(p.shown):])
		p.shown = s.Buffer
	case chatui.PhaseSettled:
		reply := s.Current.Messages[len(s.Current.Messages)-1].Content
		switch {
		case p.shown == "":
			fmt.Fprint(p.w, reply)
		case p.shown != reply:
			// The stream broke off; the stored reply is the fallback.
			fmt.Fprint(p.w, "\n"+reply)
		}
		fmt.Fprintln(p.w)
		p.shown = ""
	}
}

func printHistory(w io.Writer, s chatui.State) {
	for _, m := range s.Current.Messages {
		fmt.Fprintf(w, "[%s] %s\n", m.Role, m.Content)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func joined[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
