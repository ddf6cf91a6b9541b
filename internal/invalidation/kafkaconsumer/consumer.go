// Package kafkaconsumer drains catalog-update events from Kafka and
// purges the corresponding asset cache entries.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/assetcache/keys"
	"github.com/geoscape-io/stacube/internal/invalidation"
	"github.com/geoscape-io/stacube/internal/observability"
)

// Purger is the slice of the asset cache the consumer needs.
type Purger interface {
	Purge(ctx context.Context, keys ...string) error
}

type Consumer struct {
	cfg   Config
	log   zerolog.Logger
	cache Purger
}

func New(cfg Config, log zerolog.Logger, cache Purger) *Consumer {
	return &Consumer{cfg: cfg, log: log, cache: cache}
}

// Start consumes invalidation events until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.log.Info().Strs("brokers", c.cfg.Brokers).Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).Msg("catalog invalidation consumer starting")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("catalog invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.log.Error().Err(err).Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).Msg("kafka consumer error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single catalog-update message.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncInvalidation(err)
		c.log.Error().Str("kind", "decode").Str("topic", msg.Topic).
			Int32("partition", msg.Partition).Int64("offset", msg.Offset).
			Msg("kafka decode error")
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.IncInvalidation(err)
		return fmt.Errorf("invalid event: %w", err)
	}

	delKeys := make([]string, 0, len(ev.ItemIDs)*len(ev.Assets))
	for _, item := range ev.ItemIDs {
		for _, asset := range ev.Assets {
			delKeys = append(delKeys, keys.Key(ev.Collection, item, asset))
		}
	}

	if err := c.cache.Purge(ctx, delKeys...); err != nil {
		observability.IncInvalidation(err)
		c.log.Error().Err(err).Str("kind", "purge").Int("keys", len(delKeys)).
			Msg("asset cache purge failed")
		return fmt.Errorf("purge: %w", err)
	}

	observability.IncInvalidation(nil)
	c.log.Info().Str("op", ev.Op).Str("collection", ev.Collection).
		Int("items", len(ev.ItemIDs)).Int("keys", len(delKeys)).
		Msg("purged cached assets")
	return nil
}
