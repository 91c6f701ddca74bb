package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"clip-tracker/internal/models"

	"github.com/redis/go-redis/v9"
)

const EventClipsSubmitted = "clips.submitted"

// Event is the envelope published on the Redis channel.
type Event struct {
	Type      string            `json:"type"`
	Payload   models.Submission `json:"payload"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher is the part of *redis.Client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes submissions on a pub/sub channel.
type RedisSink struct {
	Client  Publisher
	Channel string
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Submit(ctx context.Context, sub models.Submission) (Receipt, error) {
	data, err := json.Marshal(Event{
		Type:      EventClipsSubmitted,
		Payload:   sub,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return Receipt{}, err
	}

	receivers, err := s.Client.Publish(ctx, s.Channel, data).Result()
	if err != nil {
		return Receipt{}, fmt.Errorf("publish to %s: %w", s.Channel, err)
	}

	return Receipt{Sink: s.Name(), Reference: s.Channel + ":" + strconv.FormatInt(receivers, 10)}, nil
}
