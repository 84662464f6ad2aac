package broker

import (
	"encoding/json"
	"fmt"
	"sync"

	"ferry/pkg/events"
	"ferry/pkg/util/context"

	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const (
	// RabbitMQType Broker type RabbitMQ
	RabbitMQType Type = "rabbitmq"

	headerRunID = "x-run-id"
	headerJob   = "x-job"
	headerType  = "x-type"

	defaultExchange = "ferry.events"
)

func init() {
	register(RabbitMQType, func(ctx context.Context, c Config) (Broker, error) {
		return NewRabbitMQBroker(ctx, c.RabbitMQ)
	})
}

type rabbitmq struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels must not be used concurrently
	ch       *amqp.Channel
	exchange string
}

// RabbitMQConfig is configuration for rabbitmq broker implementation
type RabbitMQConfig struct {
	User     string `mapstructure:"user" env:"FERRY_RABBITMQ_USER"`
	Password string `mapstructure:"password" env:"FERRY_RABBITMQ_PASSWORD"`
	URI      string `mapstructure:"uri" env:"FERRY_RABBITMQ_URI"`
	// Exchange is the topic exchange events are published to.
	Exchange string `mapstructure:"exchange" env:"FERRY_RABBITMQ_EXCHANGE"`
}

// URL returns the amqp url of the configuration.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s", c.User, c.Password, c.URI)
}

// NewRabbitMQBroker returns a Broker implementation based on RabbitMQ.
func NewRabbitMQBroker(ctx context.Context, conf RabbitMQConfig) (Broker, error) {
	if conf.URI == "" {
		return nil, errors.New("rabbitmq uri is required")
	}
	if conf.Exchange == "" {
		conf.Exchange = defaultExchange
	}
	ctx.Logger().Infof("connecting to rabbitmq at '%s'", conf.URI)
	conn, err := amqp.Dial(conf.URL())
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to rabbitmq at '%s'", conf.URI)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "cannot open channel to rabbitmq")
	}
	err = ch.ExchangeDeclare(
		conf.Exchange, // name
		"topic",       // kind
		true,          // durable
		false,         // auto delete
		false,         // internal
		false,         // no wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "cannot declare exchange %s", conf.Exchange)
	}
	return &rabbitmq{
		conn:     conn,
		ch:       ch,
		exchange: conf.Exchange,
	}, nil
}

func (q *rabbitmq) Publish(ctx context.Context, evt events.Event) error {
	ctx.Logger().Tracef("publishing event %s to exchange %s", evt, q.exchange)
	headers := amqp.Table{
		headerRunID: evt.RunID,
		headerJob:   evt.Job,
		headerType:  string(evt.Type),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal event %s", evt)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.Publish(
		q.exchange,      // exchange
		RoutingKey(evt), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Headers:     headers,
			Timestamp:   evt.Time,
		})
	return errors.Wrapf(err, "cannot publish event %s", evt)
}

func (q *rabbitmq) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return errors.Wrap(err, "cannot close rabbitmq channel")
	}
	return q.conn.Close()
}
