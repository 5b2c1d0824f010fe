package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vrtravels/tour-concierge/agent/classify"
	"github.com/vrtravels/tour-concierge/agent/orchestrator"
	"github.com/vrtravels/tour-concierge/agent/render"
	sessionx "github.com/vrtravels/tour-concierge/agent/session"
	configx "github.com/vrtravels/tour-concierge/pkg/config"
	httpserverx "github.com/vrtravels/tour-concierge/pkg/httpserver"
	llmx "github.com/vrtravels/tour-concierge/pkg/llm"
	_ "github.com/vrtravels/tour-concierge/pkg/logger/autoload"
	mcpx "github.com/vrtravels/tour-concierge/pkg/mcp"
	whatsappx "github.com/vrtravels/tour-concierge/pkg/whatsapp"
)

type AppConfig struct {
	SessionTimeout time.Duration `envconfig:"SESSION_TIMEOUT" split_words:"true" default:"24h"`
}

func main() {
	// Parsing happens inside config loading so the -env flag registers first.
	repl := flag.Bool("repl", false, "read queries from stdin instead of serving HTTP")

	appCfg := configx.MustNew[AppConfig]("")

	llmCfg := configx.MustNew[llmx.Config]("LLM")
	llmClient := llmx.MustNew(*llmCfg)

	mcpCfg := configx.MustNew[mcpx.Config]("MCP")
	gateway, err := mcpx.NewGateway(*mcpCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build mcp gateway")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(rootCtx, 30*time.Second)
	if err := gateway.Connect(connectCtx); err != nil {
		connectCancel()
		log.Fatal().Err(err).Msg("failed to connect to tour server")
	}
	connectCancel()
	defer gateway.Close()
	log.Info().Strs("tools", gateway.Tools()).Msg("tour server connected")

	sessions := sessionx.NewManager(appCfg.SessionTimeout)
	sessions.StartSweeper(rootCtx)

	classifier := classify.New(llmClient, gateway.Tools())
	renderer := render.New(llmClient)

	orchCfg := configx.MustNew[orchestrator.Config]("")
	orch, err := orchestrator.New(sessions, classifier, renderer, gateway, *orchCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	// Exercise the whole pipeline once before accepting traffic. A failure
	// here is logged, not fatal: the rule fallback keeps the bot usable even
	// when the model is unreachable.
	selfTest := orch.Answer(rootCtx, "Hello, can you help me?", "test-user")
	log.Info().Str("response", selfTest).Msg("startup self-test completed")

	if *repl {
		runREPL(rootCtx, orch, sessions)
		return
	}

	waCfg := configx.MustNew[whatsappx.Config]("WHATSAPP")
	deliverer := whatsappx.MustNew(*waCfg)
	if !deliverer.Enabled() {
		log.Warn().Msg("whatsapp api key not set, outbound delivery disabled")
	}

	serverCfg := configx.MustNew[httpserverx.Config]("SERVER")
	server := httpserverx.NewServer(*serverCfg, orch, sessions, deliverer, waCfg.IntegratedNumber)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, sessions *sessionx.Manager) {
	fmt.Println("Tour concierge REPL. Type 'quit' or 'exit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			return
		}

		sessions.AppendHistory("repl-user", "user", query)
		reply := orch.Answer(ctx, query, "repl-user")
		sessions.AppendHistory("repl-user", "assistant", reply)
		fmt.Println(reply)
	}
}
