// Package redis publishes decision events to Redis Streams so external
// consumers (dashboards, analytics jobs) can follow the bot live. The
// publisher is optional: when Redis is down events are dropped, never
// blocking the decision path.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"breakout-botv1/internal/engine"
)

const (
	// ~1 week of decisions at a few per minute, trimmed approximately.
	streamMaxLen     = 20000
	defaultLatestTTL = 30 * time.Minute
	defaultBuffer    = 256
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Stream   string // stream key, default "bot:decisions"
}

// Publisher writes engine decision events to a Redis Stream, keeps a
// per-symbol latest key, and mirrors each event on PubSub. It
// implements engine.EventSink; enqueueing never blocks.
type Publisher struct {
	client *goredis.Client
	stream string
	ch     chan engine.Event
	// closing is signalled instead of closing ch: the scheduler may
	// still enqueue during shutdown, and a send to a closed channel
	// would panic.
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// NewPublisher connects to Redis and starts the background writer.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "bot:decisions"
	}

	p := &Publisher{
		client:  client,
		stream:  cfg.Stream,
		ch:      make(chan engine.Event, defaultBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()

	log.Printf("[redis] connected to %s, publishing to %s", cfg.Addr, cfg.Stream)
	return p, nil
}

// Decision enqueues an event for publishing. Drops when the buffer is
// full or shutdown has begun so a slow or dead Redis never stalls a
// cycle.
func (p *Publisher) Decision(_ context.Context, e engine.Event) {
	select {
	case <-p.closing:
		return
	default:
	}
	select {
	case p.ch <- e:
	default:
		log.Printf("[redis] buffer full, dropping %s event for %s", e.Kind, e.Symbol)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for {
		select {
		case e := <-p.ch:
			p.publish(e)
		case <-p.closing:
			// Drain whatever made it into the buffer, then stop.
			for {
				select {
				case e := <-p.ch:
					p.publish(e)
				default:
					return
				}
			}
		}
	}
}

// publish performs the pipelined XADD + SET + PUBLISH for one event.
func (p *Publisher) publish(e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[redis] marshal event: %v", err)
		return
	}
	jsonData := string(data)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":   e.Kind,
			"symbol": e.Symbol,
			"data":   jsonData,
		},
	})
	pipe.Set(ctx, "bot:decision:latest:"+e.Symbol, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, "pub:decision:"+e.Symbol, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] pipeline error for %s/%s: %v", e.Symbol, e.Kind, err)
	}
}

// Close drains the buffer, stops the writer and closes the client.
// Safe to call more than once and concurrently with Decision.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.closing) })
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
	}
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
