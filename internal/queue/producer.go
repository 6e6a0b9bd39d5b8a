package queue

import (
	"context"

	"github.com/redis/go-redis/v9"

	"mediashare/internal/tasks"
)

// streamMaxLen is the approximate number of entries kept on the stream.
const streamMaxLen = 1000

type Producer struct {
	client *redis.Client
	stream string
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Enqueue appends task to the stream and returns the entry id.
func (p *Producer) Enqueue(ctx context.Context, task tasks.Task) (string, error) {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: task.Values(),
	}).Result()
}
