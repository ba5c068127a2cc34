package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Alex12012019/DeepSeekAPI/internal/config"
	"github.com/Alex12012019/DeepSeekAPI/internal/handler"
	"github.com/Alex12012019/DeepSeekAPI/internal/handler/events"
	"github.com/Alex12012019/DeepSeekAPI/internal/logging"
	"github.com/Alex12012019/DeepSeekAPI/internal/service/ai"
	analysisService "github.com/Alex12012019/DeepSeekAPI/internal/service/analysis"
	conversationService "github.com/Alex12012019/DeepSeekAPI/internal/service/conversation"
	"github.com/Alex12012019/DeepSeekAPI/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using system environment variables only")
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open conversation store")
	}
	defer st.Close()

	hub := events.NewHub()
	defer hub.Close()

	conversations := conversationService.NewService(st, conversationService.WithPublisher(hub))

	services := handler.Services{
		Conversations: conversations,
		Events:        hub,
	}

	// Initialize AI service
	var chatModel model.BaseChatModel
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize AI service, continuing without replies")
		} else {
			services.Replier = aiService
			chatModel = aiService.ChatModel()
			log.Info().Str("provider", cfg.AI.Provider).Str("model", cfg.AI.Model).Msg("AI service initialized")
		}
	} else {
		log.Warn().Msg("API 密钥未配置，跳过 AI 功能初始化")
	}

	analysisCfg := analysisService.Config{
		Enabled:  cfg.AI.FileAnalysisEnabled,
		MaxChars: cfg.AI.FileAnalysisMaxChars,
	}
	analyzer, err := analysisService.NewService(ctx, chatModel, analysisCfg)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("failed to initialize file analysis")
	case analyzer.Enabled():
		services.Analyzer = analyzer
		log.Info().Msg("file analysis uses the chat model")
	default:
		services.Analyzer = analyzer
		log.Info().Msg("file analysis falls back to heuristics")
	}

	router := handler.NewRouter(services)

	startServer(ctx, cfg.Server, router)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite conversation store")
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	case config.StoreMemory:
		log.Warn().Msg("using in-memory conversation store, nothing survives a restart")
		return store.NewMemoryStore(), nil
	default:
		log.Info().Str("dir", cfg.Dir).Msg("using file conversation store")
		return store.NewFileStore(cfg.Dir)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("chat server listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
