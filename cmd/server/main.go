package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Dorschm/stellar-sub001/internal/auth"
	"github.com/Dorschm/stellar-sub001/internal/config"
	"github.com/Dorschm/stellar-sub001/internal/handler"
	"github.com/Dorschm/stellar-sub001/internal/logger"
	"github.com/Dorschm/stellar-sub001/internal/middleware"
	"github.com/Dorschm/stellar-sub001/internal/repository/postgres"
	redisrepo "github.com/Dorschm/stellar-sub001/internal/repository/redis"
	"github.com/Dorschm/stellar-sub001/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	gameRepo := postgres.NewGameRepo(db)
	playerRepo := postgres.NewPlayerRepo(db)
	systemRepo := postgres.NewSystemRepo(db)
	attackRepo := postgres.NewAttackRepo(db)
	territoryRepo := postgres.NewTerritoryRepo(db)
	tickRepo := postgres.NewTickRepo(db)
	statsRepo := postgres.NewStatsRepo(db)

	// WebSocket hub doubles as the event broadcaster.
	wsHub := handler.NewHub()

	// Services
	tickSvc := service.NewTickService(
		gameRepo, playerRepo, systemRepo, attackRepo, territoryRepo,
		tickRepo, statsRepo, redisClient, wsHub, logger.Get())
	gameSvc := service.NewGameService(
		gameRepo, playerRepo, systemRepo, attackRepo, territoryRepo,
		tickRepo, redisClient, wsHub, logger.Get(), nil)

	// In-process tick driver; an external driver can hit /api/tick instead.
	driver := service.NewDriver(tickSvc, gameRepo, redisClient, 100*time.Millisecond, logger.Get())

	// Handlers
	tickHandler := handler.NewTickHandler(tickSvc)
	gameHandler := handler.NewGameHandler(gameSvc)
	wsHandler := handler.NewWSHandler(wsHub)

	tokenMgr := auth.NewTokenManager(cfg.TickAuthSecret)

	// Router
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Tick endpoint, optionally protected by a service token.
	mux.Handle("POST /api/tick", tokenMgr.Middleware(http.HandlerFunc(tickHandler.ProcessTick)))

	// Game lifecycle
	mux.HandleFunc("POST /api/games", gameHandler.CreateGame)
	mux.HandleFunc("GET /api/games/active", gameHandler.ListActiveGames)
	mux.HandleFunc("GET /api/games/{id}", gameHandler.GetGame)
	mux.HandleFunc("POST /api/games/{id}/join", gameHandler.JoinGame)
	mux.HandleFunc("POST /api/games/{id}/bots", gameHandler.AddBot)
	mux.HandleFunc("POST /api/games/{id}/start", gameHandler.StartGame)
	mux.HandleFunc("POST /api/games/{id}/heartbeat", gameHandler.Heartbeat)
	mux.HandleFunc("GET /api/games/{id}/tick", gameHandler.LatestTick)
	mux.HandleFunc("POST /api/games/{id}/attacks", gameHandler.LaunchAttack)
	mux.HandleFunc("POST /api/games/{id}/structures", gameHandler.BuildStructure)
	mux.HandleFunc("POST /api/mark-inactive", gameHandler.MarkInactive)

	// WebSocket
	mux.HandleFunc("GET /api/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS, middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	driver.Start()

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	driver.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
