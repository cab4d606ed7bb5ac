package config

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ConnectRedisWithRetry connects to Redis and returns the client plus a lock
// client. Redis is a best-effort optimization here (posting serialization is
// guaranteed by MySQL advisory locks); when REDIS_ADDRESS is unset both
// returns are nil and callers must treat that as "no redis".
func ConnectRedisWithRetry() (*redis.Client, *redislock.Client) {
	address := strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
	if address == "" {
		log.Printf("REDIS_ADDRESS not set; running without redis")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: address,
	})

	var attempt int
	for {
		attempt++
		if err := client.Ping(context.Background()).Err(); err == nil {
			log.Printf("connected to redis (attempt=%d)", attempt)
			return client, redislock.New(client)
		} else if attempt >= 5 {
			// Do not block startup forever on an optional dependency.
			log.Printf("giving up on redis after %d attempts: %v; running without redis", attempt, err)
			return nil, nil
		} else {
			log.Printf("failed to connect redis (attempt=%d): %v; retrying", attempt, err)
			time.Sleep(time.Second * time.Duration(attempt))
		}
	}
}
