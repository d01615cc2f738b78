// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/rps-arena/server/internal/auth"
	"github.com/rps-arena/server/internal/cache"
	"github.com/rps-arena/server/internal/database"
	"github.com/rps-arena/server/internal/handlers"
	"github.com/rps-arena/server/internal/lobby"
	"github.com/rps-arena/server/internal/middleware"
	"github.com/rps-arena/server/internal/models"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis connect error: %v", err)
	}

	// Finished matches go onto the recorder queue; the room actors must
	// never wait on Redis.
	publish := func(sum models.MatchSummary) {
		go func() {
			if err := cache.PublishMatchSummary(context.Background(), sum); err != nil {
				logger.Errorf("failed to enqueue match %s: %v", sum.MatchID, err)
			}
		}()
	}

	lob := lobby.New(logger, publish, lobby.DefaultGrace)
	go lob.Run(context.Background())

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.HandleFunc("/user/me", handlers.MeHandler)
	mux.HandleFunc("/user/update", handlers.UpdateProfileHandler)
	mux.HandleFunc("/user/matches", handlers.MatchHistoryHandler)

	// leaderboard
	mux.HandleFunc("/leaderboard", handlers.LeaderboardHandler)

	// realtime websocket
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, lob),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
