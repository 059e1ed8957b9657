package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wagerbook/domain/entities"
	"wagerbook/domain/events"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	keyPrefix    = "wagerbook:balance:"
	genKeyPrefix = "wagerbook:balance:gen:"

	// Generations must outlive any in-flight store read
	generationTTL = 24 * time.Hour
)

var errStaleGeneration = errors.New("balance changed since read")

// RedisBalanceCache keeps short-lived balance views for display.
// Every error is logged and treated as a miss.
type RedisBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// balanceView is the cached shape of a user's balances
type balanceView struct {
	UserID          string     `json:"userId"`
	PracticeBalance int64      `json:"practiceBalance"`
	RealBalance     int64      `json:"realBalance"`
	DailyRealSpend  int64      `json:"dailyRealSpend"`
	LastWagerDate   *time.Time `json:"lastWagerDate,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisBalanceCache creates a balance cache over an existing client
func NewRedisBalanceCache(client *redis.Client, ttl time.Duration) *RedisBalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisBalanceCache{
		client: client,
		ttl:    ttl,
	}
}

func key(userID string) string {
	return keyPrefix + userID
}

func genKey(userID string) string {
	return genKeyPrefix + userID
}

// Get returns the cached balances for userID
func (c *RedisBalanceCache) Get(ctx context.Context, userID string) (*entities.User, bool) {
	data, err := c.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithFields(log.Fields{
				"userID": userID,
				"error":  err,
			}).Warn("Balance cache read failed")
		}
		return nil, false
	}

	var view balanceView
	if err := json.Unmarshal(data, &view); err != nil {
		log.WithFields(log.Fields{
			"userID": userID,
			"error":  err,
		}).Warn("Discarding unreadable balance cache entry")
		c.Invalidate(ctx, userID)
		return nil, false
	}

	return &entities.User{
		ID:              view.UserID,
		PracticeBalance: view.PracticeBalance,
		RealBalance:     view.RealBalance,
		DailyRealSpend:  view.DailyRealSpend,
		LastWagerDate:   view.LastWagerDate,
		CreatedAt:       view.CreatedAt,
		UpdatedAt:       view.UpdatedAt,
	}, true
}

// Generation returns the user's invalidation counter. Read it before loading
// balances from the store and hand it to Set. ok is false when Redis is unreadable.
func (c *RedisBalanceCache) Generation(ctx context.Context, userID string) (int64, bool) {
	gen, err := c.client.Get(ctx, genKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.WithFields(log.Fields{
			"userID": userID,
			"error":  err,
		}).Warn("Balance cache generation read failed")
		return 0, false
	}
	return gen, true
}

// Set stores the user's balances for the cache TTL unless the user was
// invalidated after generation was read
func (c *RedisBalanceCache) Set(ctx context.Context, user *entities.User, generation int64) {
	data, err := json.Marshal(balanceView{
		UserID:          user.ID,
		PracticeBalance: user.PracticeBalance,
		RealBalance:     user.RealBalance,
		DailyRealSpend:  user.DailyRealSpend,
		LastWagerDate:   user.LastWagerDate,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to encode balance cache entry")
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey(user.ID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(user.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey(user.ID))

	switch {
	case err == nil:
	case errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		log.WithField("userID", user.ID).Debug("Skipped caching balance changed during read")
	default:
		log.WithFields(log.Fields{
			"userID": user.ID,
			"error":  err,
		}).Warn("Balance cache write failed")
	}
}

// Invalidate drops the cached balances for userID and bumps its generation
// so reads already in flight cannot repopulate the entry
func (c *RedisBalanceCache) Invalidate(ctx context.Context, userID string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(userID))
		pipe.Expire(ctx, genKey(userID), generationTTL)
		pipe.Del(ctx, key(userID))
		return nil
	})
	if err != nil {
		log.WithFields(log.Fields{
			"userID": userID,
			"error":  err,
		}).Warn("Balance cache invalidation failed")
	}
}

// HandleBalanceChange invalidates the user's entry after a committed balance change
func (c *RedisBalanceCache) HandleBalanceChange(ctx context.Context, event events.Event) error {
	change, ok := event.(events.BalanceChangeEvent)
	if !ok {
		return nil
	}
	c.Invalidate(ctx, change.UserID)
	return nil
}
