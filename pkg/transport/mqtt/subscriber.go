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

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/correlation"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/jeremyhahn/go-envelope/pkg/logger"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
)

// Handler receives the opened payload of a message.
type Handler func(ctx context.Context, topic string, payload any)

// Subscriber opens envelopes received on subscribed topics.
type Subscriber struct {
	client    Client
	encryptor *encryptor.Encryptor
	opts      options
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(client Client, enc *encryptor.Encryptor, opts ...Option) *Subscriber {
	return &Subscriber{client: client, encryptor: enc, opts: newOptions(opts)}
}

// Subscribe registers handler for topic, which may contain wildcards.
// Messages are opened with the concrete topic they arrived on as the
// purpose; those that fail are logged and dropped.
func (s *Subscriber) Subscribe(ctx context.Context, topic string, handler Handler) error {
	token := s.client.Subscribe(topic, s.opts.qos, func(_ paho.Client, msg paho.Message) {
		s.receive(msg, handler)
	})
	return wait(ctx, token, s.opts.timeout)
}

// Unsubscribe removes the subscriptions for topics.
func (s *Subscriber) Unsubscribe(ctx context.Context, topics ...string) error {
	return wait(ctx, s.client.Unsubscribe(topics...), s.opts.timeout)
}

func (s *Subscriber) receive(msg paho.Message, handler Handler) {
	ctx := correlation.WithCorrelationID(context.Background(), correlation.NewID())

	payload, err := s.encryptor.DecryptAndVerify(string(msg.Payload()), claims.For(msg.Topic()))
	if err != nil {
		metrics.RecordMQTTMessage(DirectionReceive, metrics.StatusError)
		s.opts.logger.WarnContext(ctx, "mqtt message dropped",
			logger.String("topic", msg.Topic()),
			logger.String("reason", encryptor.Reason(err)),
			logger.Redacted("envelope", string(msg.Payload())))
		return
	}

	metrics.RecordMQTTMessage(DirectionReceive, metrics.StatusSuccess)
	handler(ctx, msg.Topic(), payload)
}
