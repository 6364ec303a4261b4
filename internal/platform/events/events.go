// Package events announces record changes after they have been committed by a
// repository. Publishing failures are logged; they never undo or fail the
// write that triggered them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ozonelife/clinic/internal/platform/store"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Change describes one committed write.
type Change struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
}

// Publisher delivers changes to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
	Close() error
}

// -- Kafka --

// KafkaPublisher writes one message per change, keyed by record id so that
// changes to the same record stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, c Change) error {
	msg, err := Message(ctx, c)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s.%s: %w", c.Collection, c.Op, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message builds the Kafka message for c, carrying the trace context of ctx.
func Message(ctx context.Context, c Change) (kafka.Message, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode change: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(c.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(c.Collection + "." + c.Op)},
		},
	}
	carrier := headerCarrier{headers: &msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return msg, nil
}

type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i := range *c.headers {
		if (*c.headers)[i].Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

var _ propagation.TextMapCarrier = headerCarrier{}

// SplitBrokers parses a comma separated broker list.
func SplitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// -- Log --

// LogPublisher records changes in the application log.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, c Change) error {
	p.logger.Debug().
		Str("collection", c.Collection).
		Str("op", c.Op).
		Str("id", c.ID).
		Msg("record changed")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, c Change) error

func (f PublisherFunc) Publish(ctx context.Context, c Change) error { return f(ctx, c) }

func (f PublisherFunc) Close() error { return nil }

// -- Fan-out --

type multiPublisher []Publisher

// Multi delivers every change to each publisher in order. All publishers are
// attempted; their errors are joined.
func Multi(pubs ...Publisher) Publisher {
	return multiPublisher(pubs)
}

func (m multiPublisher) Publish(ctx context.Context, c Change) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -- Repository decorator --

type notifyingRepository struct {
	store.EntityRepository
	pub    Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// Wrap publishes a Change after every successful write through repo.
func Wrap(repo store.EntityRepository, pub Publisher, logger zerolog.Logger) store.EntityRepository {
	return &notifyingRepository{EntityRepository: repo, pub: pub, logger: logger, now: time.Now}
}

func (r *notifyingRepository) Create(ctx context.Context, fields store.Record) (store.Record, error) {
	rec, err := r.EntityRepository.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, OpCreate, rec.ID())
	return rec, nil
}

func (r *notifyingRepository) Update(ctx context.Context, id string, fields store.Record) (store.Record, error) {
	rec, err := r.EntityRepository.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, OpUpdate, id)
	return rec, nil
}

func (r *notifyingRepository) Delete(ctx context.Context, id string) error {
	if err := r.EntityRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.publish(ctx, OpDelete, id)
	return nil
}

func (r *notifyingRepository) publish(ctx context.Context, op, id string) {
	c := Change{Collection: r.Schema().Collection, Op: op, ID: id, At: r.now().UTC()}
	if err := r.pub.Publish(ctx, c); err != nil {
		r.logger.Error().Err(err).
			Str("collection", c.Collection).
			Str("op", op).
			Str("id", id).
			Msg("change event not published")
	}
}
