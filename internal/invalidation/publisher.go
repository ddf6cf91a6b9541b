package invalidation

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// Publisher emits catalog-update events to Kafka. Ingest tooling uses
// it to announce changed items so caching consumers drop stale asset
// payloads. Publishing is asynchronous; a full queue drops the event
// rather than blocking the ingest path.
type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	log     zerolog.Logger
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, log zerolog.Logger) (*Publisher, error) {
	if queueSize <= 0 {
		queueSize = 1024
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalidation: create async producer: %w", err)
	}

	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error().Err(err).Msg("invalidation event marshal failed")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Collection),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Error().Err(err).Str("topic", topic).Msg("invalidation publish failed")
			}
		}
	}()

	return p, nil
}

// Publish enqueues a validated event. Invalid events and queue
// overflow are reported through the error return; the caller decides
// whether a drop matters.
func (p *Publisher) Publish(ev Event) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return fmt.Errorf("publish queue full, event for collection %q dropped", ev.Collection)
	}
}

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("invalidation: close producer: %w", err)
	}
	return nil
}
