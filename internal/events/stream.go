package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const payloadVersion = "v1"

// Envelope is the wrapper written to the Redis stream.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	PayloadVersion string          `json:"payload_version"`
	Data           json.RawMessage `json:"data"`
}

func (e *Envelope) validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if len(e.Data) == 0 {
		return fmt.Errorf("data payload is required")
	}
	return nil
}

// NewEnvelope wraps ev.
func NewEnvelope(ev Event) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal event: %w", err)
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Envelope{
		EventID:        uuid.NewString(),
		EventType:      string(ev.Type),
		OccurredAt:     at,
		PayloadVersion: payloadVersion,
		Data:           data,
	}, nil
}

// Publisher appends envelopes to a Redis stream.
type Publisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewPublisher(client redis.Cmdable, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *Publisher) Publish(ctx context.Context, env Envelope) (string, error) {
	if p.stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if err := env.validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// StreamSink publishes events from a background goroutine so Emit never
// waits on Redis. Events beyond the buffer are dropped and logged.
type StreamSink struct {
	pub    *Publisher
	logger *zap.Logger
	ch     chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

func NewStreamSink(pub *Publisher, logger *zap.Logger, buffer int) *StreamSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	s := &StreamSink{pub: pub, logger: logger, ch: make(chan Event, buffer)}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *StreamSink) run() {
	defer s.wg.Done()
	for ev := range s.ch {
		env, err := NewEnvelope(ev)
		if err != nil {
			s.logger.Warn("drop event", zap.String("type", string(ev.Type)), zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = s.pub.Publish(ctx, env)
		cancel()
		if err != nil {
			s.logger.Warn("publish event", zap.String("type", string(ev.Type)), zap.Error(err))
		}
	}
}

func (s *StreamSink) Emit(ev Event) {
	select {
	case s.ch <- ev:
	default:
		s.logger.Warn("event buffer full, dropping", zap.String("type", string(ev.Type)))
	}
}

// Close flushes buffered events and stops the publisher goroutine. Emit
// must not be called after Close.
func (s *StreamSink) Close() {
	s.once.Do(func() { close(s.ch) })
	s.wg.Wait()
}

// Tail reads the stream from after id (use "$" for new entries only, "0" for
// everything) and calls fn for each event until ctx is done or fn errors.
func Tail(ctx context.Context, client redis.Cmdable, stream, id string, fn func(Event) error) error {
	if id == "" {
		id = "$"
	}
	for {
		res, err := client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, id},
			Block:   5 * time.Second,
			Count:   100,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("xread: %w", err)
		}
		for _, st := range res {
			for _, msg := range st.Messages {
				id = msg.ID
				ev, err := decode(msg.Values)
				if err != nil {
					return err
				}
				if err := fn(ev); err != nil {
					return err
				}
			}
		}
	}
}

func decode(values map[string]interface{}) (Event, error) {
	var raw []byte
	switch v := values["envelope"].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return Event{}, fmt.Errorf("stream entry without envelope")
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.validate(); err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}
