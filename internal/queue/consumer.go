package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mediashare/internal/metrics"
)

const (
	readBatch     = 10
	claimBatch    = 50
	maxDeliveries = 5
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	claimInterval time.Duration
	logger        zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, logger zerolog.Logger, handler MessageHandler) *Consumer {
	if claimInterval <= 0 {
		claimInterval = 30 * time.Second
	}
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		claimInterval: claimInterval,
		logger:        logger.With().Str("stream", stream).Str("group", group).Logger(),
		handler:       handler,
	}
}

// EnsureGroup creates the stream and consumer group if they do not exist yet.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("stream read error")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(2 * time.Second):
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.claimStalled(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("claim stalled messages failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    readBatch,
		Block:    min(c.claimInterval, 5*time.Second),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

// process hands msg to the handler and acks it on success. Failed messages stay pending
// and are retried through claimStalled.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("handle message failed")
		return
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

// claimStalled takes over messages another consumer left pending. A message delivered
// maxDeliveries times is copied to the dead letter stream and acked.
func (c *Consumer) claimStalled(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Idle:   c.claimInterval,
		Start:  "-",
		End:    "+",
		Count:  claimBatch,
	}).Result()
	if err != nil {
		return err
	}

	var retry []string
	for _, entry := range pending {
		if entry.RetryCount >= maxDeliveries {
			if err := c.deadLetter(ctx, entry.ID); err != nil {
				c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("dead letter failed")
			}
			continue
		}
		retry = append(retry, entry.ID)
	}
	if len(retry) == 0 {
		return nil
	}

	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.claimInterval,
		Messages: retry,
	}).Result()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		c.process(ctx, msg)
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, id string) error {
	msgs, err := c.client.XRangeN(ctx, c.stream, id, id, 1).Result()
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(msgs) == 1 {
			values := msgs[0].Values
			values["origin_id"] = id
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: c.DeadLetterStream(), Values: values})
		}
		pipe.XAck(ctx, c.stream, c.group, id)
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordTask("dead_letter", nil)
	c.logger.Warn().Str("message_id", id).Msg("message moved to dead letter stream")
	return nil
}

// DeadLetterStream names the stream holding messages that exhausted their deliveries.
func (c *Consumer) DeadLetterStream() string {
	return c.stream + ":dead"
}
