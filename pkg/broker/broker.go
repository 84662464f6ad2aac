// Package broker publishes run events to a message broker.
package broker

import (
	"strings"
	"sync"

	"ferry/pkg/events"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
)

var (
	factories = make(map[Type]func(context.Context, Config) (Broker, error))
	mutex     = &sync.Mutex{}
)

func register(t Type, f func(context.Context, Config) (Broker, error)) {
	mutex.Lock()
	defer mutex.Unlock()
	factories[t] = f
}

// Type is a string designing the implementation of Broker interface
type Type string

// Broker publishes events.
type Broker interface {
	// Publish publishes the given event.
	Publish(ctx context.Context, evt events.Event) error

	// Close closes all connections.
	Close() error
}

// Config is the configuration of the broker. An empty type disables event publishing.
type Config struct {
	Type     Type           `mapstructure:"type" env:"FERRY_BROKER_TYPE"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// Enabled returns true if a broker type is configured.
func (c Config) Enabled() bool {
	return c.Type != ""
}

// New returns a new instance of Broker based on given configuration
func New(ctx context.Context, c Config) (Broker, error) {
	typ := Type(strings.ToLower(string(c.Type)))
	mutex.Lock()
	f, ok := factories[typ]
	mutex.Unlock()
	if !ok {
		return nil, errors.Errorf("unknown broker type %s", c.Type)
	}
	return f(ctx, c)
}

// Handler returns an events.Handler publishing every event to the broker.
func Handler(b Broker) events.Handler {
	return events.HandlerFunc(func(ctx context.Context, evt events.Event) error {
		return b.Publish(ctx, evt)
	})
}

// RoutingKey returns the routing key of an event: its lower case type, followed by the job name for job events.
func RoutingKey(evt events.Event) string {
	key := strings.ToLower(string(evt.Type))
	if evt.Job != "" {
		key += "." + evt.Job
	}
	return key
}
