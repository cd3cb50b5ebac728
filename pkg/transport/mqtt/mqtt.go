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

// Package mqtt publishes and receives encrypted envelopes over MQTT.
//
// Every message is sealed by an encryptor.Encryptor with the concrete
// topic as its purpose, so a message replayed onto another topic fails
// verification. Subscribers drop messages that do not open.
//
//	session, err := mqtt.Connect(mqtt.Config{BrokerURL: "tcp://localhost:1883", ClientID: "sensor-1"})
//	defer session.Close()
//	pub := mqtt.NewPublisher(session, enc)
//	err = pub.Publish(ctx, "sensors/1/temp", reading)
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jeremyhahn/go-envelope/pkg/metrics"
)

const (
	DefaultTimeout = 10 * time.Second

	DirectionPublish = "publish"
	DirectionReceive = "receive"
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt: operation timed out")

// Config describes a broker connection.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Timeout   time.Duration
}

// Client is the subset of paho.Client used by publishers and subscribers.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

// Session is a connected paho client tracked in the connection metrics.
type Session struct {
	paho.Client
	tracker *metrics.ConnectionTracker
}

// Connect dials the broker and waits for the connection to be
// acknowledged.
func Connect(cfg Config) (*Session, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt: broker URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	options := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	if cfg.Username != "" {
		options.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	client := paho.NewClient(options)
	if err := wait(context.Background(), client.Connect(), timeout); err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	return &Session{Client: client, tracker: metrics.NewConnectionTracker(metrics.ProtocolMQTT)}, nil
}

// Close disconnects after letting in-flight work finish for up to 250ms.
func (s *Session) Close() {
	s.Client.Disconnect(250)
	s.tracker.Close()
}

// wait blocks until token completes, ctx is cancelled or timeout passes.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTimeout
	}
}
