// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package mqtt

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
)

// Option configures a Publisher or Subscriber.
type Option func(*options)

type options struct {
	qos       byte
	retained  bool
	timeout   time.Duration
	expiresIn time.Duration
	logger    logger.Logger
}

func newOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout, logger: logger.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithQoS sets the MQTT quality of service level.
func WithQoS(qos byte) Option {
	return func(o *options) { o.qos = qos }
}

// WithRetained publishes retained messages.
func WithRetained(retained bool) Option {
	return func(o *options) { o.retained = retained }
}

// WithTimeout bounds every broker round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithExpiresIn limits how long a published message stays valid.
func WithExpiresIn(d time.Duration) Option {
	return func(o *options) { o.expiresIn = d }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Publisher seals values and publishes them.
type Publisher struct {
	client    Client
	encryptor *encryptor.Encryptor
	opts      options
}

// NewPublisher creates a Publisher.
func NewPublisher(client Client, enc *encryptor.Encryptor, opts ...Option) *Publisher {
	return &Publisher{client: client, encryptor: enc, opts: newOptions(opts)}
}

// Publish seals value for topic and waits for the broker to accept it.
func (p *Publisher) Publish(ctx context.Context, topic string, value any) error {
	claimOpts := []claims.Option{claims.For(topic)}
	if p.opts.expiresIn > 0 {
		claimOpts = append(claimOpts, claims.ExpiresIn(p.opts.expiresIn))
	}

	message, err := p.encryptor.EncryptAndSign(value, claimOpts...)
	if err != nil {
		metrics.RecordMQTTMessage(DirectionPublish, metrics.StatusError)
		return err
	}

	token := p.client.Publish(topic, p.opts.qos, p.opts.retained, []byte(message))
	if err := wait(ctx, token, p.opts.timeout); err != nil {
		metrics.RecordMQTTMessage(DirectionPublish, metrics.StatusError)
		p.opts.logger.WarnContext(ctx, "mqtt publish failed",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	metrics.RecordMQTTMessage(DirectionPublish, metrics.StatusSuccess)
	return nil
}
