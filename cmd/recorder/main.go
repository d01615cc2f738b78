// cmd/recorder/main.go is the asynchronous match recorder: it pops finished
// match summaries from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/rps-arena/server/internal/cache"
	"github.com/rps-arena/server/internal/database"
	"github.com/rps-arena/server/internal/models"
)

// RecorderService drains the match queue and commits each summary in its
// own transaction. Failed commits are pushed back so nothing is lost across
// restarts.
type RecorderService struct {
	redisClient *redis.Client
	queueName   string
	ctx         context.Context
	cancelFn    context.CancelFunc
}

func NewRecorderService() *RecorderService {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithCancel(context.Background())
	return &RecorderService{
		redisClient: rdb,
		queueName:   cache.QueueName(),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run connects the database and drains the queue until Stop is called.
func (rs *RecorderService) Run() {
	database.ConnectDB()

	log.Println("rps-recorder service started.")
	for {
		select {
		case <-rs.ctx.Done():
			log.Println("rps-recorder shutting down.")
			return
		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := rs.redisClient.BLPop(rs.ctx, 3*time.Second, rs.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
					continue
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				time.Sleep(time.Second)
				continue
			}
			if len(res) < 2 {
				continue
			}
			rs.handlePayload(res[1])
		}
	}
}

// decodeSummary parses one queue payload. Malformed payloads are the
// caller's cue to drop, not requeue.
func decodeSummary(payload string) (models.MatchSummary, error) {
	var sum models.MatchSummary
	if err := json.Unmarshal([]byte(payload), &sum); err != nil {
		return models.MatchSummary{}, err
	}
	return sum, nil
}

func (rs *RecorderService) handlePayload(payload string) {
	sum, err := decodeSummary(payload)
	if err != nil {
		log.Printf("invalid match summary, dropping: %v\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.CommitMatchResult(ctx, sum); err != nil {
		log.Printf("[ERROR] commit match %s: %v, requeueing\n", sum.MatchID, err)
		if pushErr := rs.redisClient.RPush(context.Background(), rs.queueName, payload).Err(); pushErr != nil {
			log.Printf("[ERROR] requeue failed, match %s lost: %v\n", sum.MatchID, pushErr)
		}
		time.Sleep(time.Second)
		return
	}
	log.Printf("Recorded match %s (room %s).\n", sum.MatchID, sum.RoomCode)
}

// Stop gracefully stops the recorder service.
func (rs *RecorderService) Stop() {
	rs.cancelFn()
}

func main() {
	rs := NewRecorderService()
	go rs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	rs.Stop()
	log.Println("Recorder shutdown complete.")
}
