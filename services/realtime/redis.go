package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/post"
)

const DefaultRedisChannel = "quantum:posts"

const (
	publishTimeout = 250 * time.Millisecond
	// after a failed publish, events are delivered locally for this long before Redis is tried again
	defaultRetryAfter = 5 * time.Second
)

type relayMessage struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// RedisRelay shares post events between API processes through Redis pub/sub.
// Events are only delivered to the local Hub once they come back from Redis,
// so every process (this one included) sees them exactly once.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  core.Logger
	queue   chan []byte

	retryAfter time.Duration
	downUntil  time.Time // publisher goroutine only
}

var _ post.EventSink = (*RedisRelay)(nil)

func NewRedisRelay(client *redis.Client, hub *Hub, logger core.Logger, queueSize int) *RedisRelay {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &RedisRelay{
		client:  client,
		channel: DefaultRedisChannel,
		hub:     hub,
		logger:  logger,
		queue:   make(chan []byte, queueSize),

		retryAfter: defaultRetryAfter,
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return redis.NewClient(opts), nil
}

// Start subscribes to the channel and starts the publisher. It returns once the subscription is live.
func (r *RedisRelay) Start(ctx context.Context) (func(context.Context) error, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "subscribing to "+r.channel)
	}

	var wg sync.WaitGroup
	stopCh := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		for msg := range sub.Channel() {
			r.deliver(msg.Payload)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case payload := <-r.queue:
				r.publish(payload)
			case <-stopCh:
				return
			}
		}
	}()

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stopCh)
			_ = sub.Close() // closes sub.Channel()
		})
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

func (r *RedisRelay) PostUpdated(p post.Post) {
	r.enqueue(post.EventPostUpdated, p)
}

func (r *RedisRelay) PostDeleted(id string) {
	r.enqueue(post.EventPostDeleted, post.DeletedPayload{ID: id})
}

func (r *RedisRelay) enqueue(name string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		r.logger.Error(fmt.Sprintf("encoding %s event: %v", name, err), err)
		return
	}
	payload, err := json.Marshal(relayMessage{Name: name, Data: raw})
	if err != nil {
		r.logger.Error(fmt.Sprintf("encoding %s event: %v", name, err), err)
		return
	}
	select {
	case r.queue <- payload:
	default:
		r.logger.Warn(fmt.Sprintf("redis relay queue full, dropping %s event", name))
	}
}

// publish sends payload through Redis. While Redis is considered down, payload goes
// straight to the local hub so a burst does not wait on a dead connection.
func (r *RedisRelay) publish(payload []byte) {
	now := time.Now()
	if now.Before(r.downUntil) {
		r.deliver(string(payload))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.downUntil = time.Now().Add(r.retryAfter)
		r.logger.Warn(fmt.Sprintf("publishing to redis: %v; delivering locally for %v", err, r.retryAfter), err)
		r.deliver(string(payload))
		return
	}
	if !r.downUntil.IsZero() {
		r.downUntil = time.Time{}
		r.logger.Info("redis relay recovered")
	}
}

func (r *RedisRelay) deliver(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		r.logger.Warn(fmt.Sprintf("decoding relayed event: %v", err), err)
		return
	}
	r.hub.Publish(msg.Name, msg.Data)
}
