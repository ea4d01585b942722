package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"reminder-agent/internal/logger"
	"reminder-agent/internal/reminder"
)

// RedisStorage keeps the encoded list under a single key and announces
// every write on a channel so other processes can follow changes.
type RedisStorage struct {
	client  *redis.Client
	key     string
	channel string
}

func NewRedisStorage(url string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStorage{
		client:  client,
		key:     Key,
		channel: Key + ":changed",
	}, nil
}

func (rs *RedisStorage) Load(ctx context.Context) ([]*reminder.Reminder, error) {
	b, err := rs.client.Get(ctx, rs.key).Bytes()
	if err == redis.Nil {
		return []*reminder.Reminder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminders: %w", err)
	}
	return reminder.DecodeList(b)
}

func (rs *RedisStorage) Save(ctx context.Context, list []*reminder.Reminder) error {
	if err := checkUnique(list); err != nil {
		return err
	}
	b, err := reminder.EncodeList(list)
	if err != nil {
		return err
	}
	if err := rs.client.Set(ctx, rs.key, b, 0).Err(); err != nil {
		return fmt.Errorf("failed to save reminders: %w", err)
	}
	if err := rs.client.Publish(ctx, rs.channel, "saved").Err(); err != nil {
		logger.Debug(ctx, "Redis publish change failed", "error", err)
	}
	return nil
}

// Watch calls onChange for every write announced on the change channel,
// including writes made by other processes. It blocks until ctx is done.
func (rs *RedisStorage) Watch(ctx context.Context, onChange func()) error {
	sub := rs.client.Subscribe(ctx, rs.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", rs.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			onChange()
		}
	}
}

func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
