package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/api"
	"parley/common"
	"parley/delegation"
	"parley/logger"
	"parley/pipeline"
	"parley/room"
	"parley/store/sqlite"
	"parley/telemetry"
	"parley/upstream"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

const roomSweepInterval = time.Minute

func main() {
	_ = godotenv.Load()
	log.Logger = logger.Get()

	cmd := &cli.Command{
		Name:  "parley",
		Usage: "real-time collaborative journal server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "database-url",
				Value: defaultDatabasePath(),
				Usage: "path to the sqlite database file",
			},
			&cli.StringFlag{
				Name:  "host",
				Value: "0.0.0.0",
				Usage: "address to bind the HTTP server to",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 8080,
				Usage: "port to bind the HTTP server to",
			},
			&cli.StringFlag{
				Name:  "upstream-ai-url",
				Value: "http://localhost:8081",
				Usage: "base URL of the upstream generative-AI service",
			},
			&cli.BoolFlag{
				Name:  "non-interactive",
				Value: false,
				Usage: "suppress startup banner output, for running under a supervisor",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}

func defaultDatabasePath() string {
	dir, err := common.DataHome()
	if err != nil {
		return "parley.db"
	}
	return dir + "/parley.db"
}

func run(ctx context.Context, cmd *cli.Command) error {
	dbURL := envOr("DATABASE_URL", cmd.String("database-url"))
	host := envOr("HOST", cmd.String("host"))
	port := cmd.Int("port")
	if v := os.Getenv("PORT"); v != "" {
		if _, err := fmt.Sscan(v, &port); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
	}
	upstreamURL := envOr("UPSTREAM_AI_URL", cmd.String("upstream-ai-url"))

	if !cmd.Bool("non-interactive") {
		fmt.Printf("parley server starting on %s:%d (db=%s, upstream=%s)\n", host, port, dbURL, upstreamURL)
	}

	shutdownTracer, err := telemetry.InitTracer("parley")
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	client, err := sqlite.NewClient(dbURL)
	if err != nil {
		return fmt.Errorf("initializing sqlite client: %w", err)
	}
	defer client.Close()

	store := sqlite.NewStore(client)
	rooms := room.NewManager()
	engine := delegation.NewEngine()
	ai := upstream.NewClient(upstreamURL)
	pipe := pipeline.New(store, rooms, ai)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepEmptyRooms(sweepCtx, rooms)

	router := api.NewRouter(api.Deps{
		Journals: store,
		Blocks:   store,
		Rooms:    rooms,
		Engine:   engine,
		Pipeline: pipe,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepEmptyRooms(ctx context.Context, rooms *room.Manager) {
	ticker := time.NewTicker(roomSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rooms.CleanupEmptyRooms()
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
