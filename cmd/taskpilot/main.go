package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/mveroni/taskpilot/internal/brain"
	"github.com/mveroni/taskpilot/internal/chat"
	"github.com/mveroni/taskpilot/internal/config"
	"github.com/mveroni/taskpilot/internal/convo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	server := flag.String("server", cfg.ServerBaseURL, "task server base URL")
	modelURL := flag.String("model-url", cfg.ModelBaseURL, "model endpoint base URL")
	model := flag.String("model", cfg.ModelName, "model name")
	user := flag.String("user", os.Getenv("USER"), "user name attached to the session")
	maxTurns := flag.Int("max-turns", cfg.WindowMaxTurns, "conversation window size")
	flag.Parse()

	ctx := context.Background()

	tools := chat.NewToolClient(*server)
	serverSession, err := tools.CreateSession(ctx, *user)
	if err != nil {
		// The tool endpoint accepts sessionless calls, so a failed handshake
		// degrades rather than aborts.
		log.Printf("session handshake with %s failed, continuing without one: %v", *server, err)
	}

	completer := brain.NewClient(*modelURL, *model, cfg.ModelTimeout)
	window := convo.NewWindow(*maxTurns, cfg.SummaryKeywords)
	loop := chat.NewLoop(chat.NewSession(*user, serverSession), window, completer, tools, os.Stdout)

	if err := loop.Run(ctx, os.Stdin); err != nil {
		log.Fatalf("chat loop error: %v", err)
	}
}
