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
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/jeremyhahn/go-envelope/pkg/claims"
	"github.com/jeremyhahn/go-envelope/pkg/encryptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken is a paho.Token that is either complete or never completes.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeBroker delivers published messages synchronously to matching
// subscriptions. Only exact topics and trailing "#" filters match.
type fakeBroker struct {
	mu         sync.Mutex
	handlers   map[string]paho.MessageHandler
	published  []*fakeMessage
	publishErr error
	hang       bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]paho.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	if b.hang {
		return pendingToken()
	}
	if b.publishErr != nil {
		return completedToken(b.publishErr)
	}
	msg := &fakeMessage{topic: topic, payload: payload.([]byte)}

	b.mu.Lock()
	b.published = append(b.published, msg)
	var matched []paho.MessageHandler
	for filter, h := range b.handlers {
		if filter == topic || (strings.HasSuffix(filter, "#") && strings.HasPrefix(topic, strings.TrimSuffix(filter, "#"))) {
			matched = append(matched, h)
		}
	}
	b.mu.Unlock()

	for _, h := range matched {
		h(nil, msg)
	}
	return completedToken(nil)
}

func (b *fakeBroker) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = callback
	return completedToken(nil)
}

func (b *fakeBroker) Unsubscribe(topics ...string) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		delete(b.handlers, topic)
	}
	return completedToken(nil)
}

// deliver injects a raw message as if it arrived from the network.
func (b *fakeBroker) deliver(filter string, msg *fakeMessage) {
	b.mu.Lock()
	h := b.handlers[filter]
	b.mu.Unlock()
	h(nil, msg)
}

type received struct {
	topic   string
	payload any
}

func newTestEncryptor(t *testing.T) *encryptor.Encryptor {
	t.Helper()
	enc, err := encryptor.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return enc
}

func TestPublishSubscribe(t *testing.T) {
	broker := newFakeBroker()
	enc := newTestEncryptor(t)

	var got []received
	sub := NewSubscriber(broker, enc)
	require.NoError(t, sub.Subscribe(context.Background(), "sensors/#", func(ctx context.Context, topic string, payload any) {
		got = append(got, received{topic, payload})
	}))

	pub := NewPublisher(broker, enc, WithQoS(1), WithExpiresIn(time.Minute))
	require.NoError(t, pub.Publish(context.Background(), "sensors/1/temp", map[string]any{"celsius": "21.5"}))

	require.Len(t, got, 1)
	assert.Equal(t, "sensors/1/temp", got[0].topic)
	assert.Equal(t, map[string]any{"celsius": "21.5"}, got[0].payload)

	require.Len(t, broker.published, 1)
	assert.NotContains(t, string(broker.published[0].payload), "celsius")
}

func TestSubscriber_DropsReplayedAndForgedMessages(t *testing.T) {
	broker := newFakeBroker()
	enc := newTestEncryptor(t)

	var got []received
	sub := NewSubscriber(broker, enc)
	require.NoError(t, sub.Subscribe(context.Background(), "sensors/#", func(ctx context.Context, topic string, payload any) {
		got = append(got, received{topic, payload})
	}))

	sealed, err := enc.EncryptAndSign("21.5", claims.For("sensors/1/temp"))
	require.NoError(t, err)

	broker.deliver("sensors/#", &fakeMessage{topic: "sensors/2/temp", payload: []byte(sealed)})
	broker.deliver("sensors/#", &fakeMessage{topic: "sensors/1/temp", payload: []byte("purejunk")})
	assert.Empty(t, got)

	broker.deliver("sensors/#", &fakeMessage{topic: "sensors/1/temp", payload: []byte(sealed)})
	require.Len(t, got, 1)
	assert.Equal(t, "21.5", got[0].payload)
}

func TestUnsubscribe(t *testing.T) {
	broker := newFakeBroker()
	enc := newTestEncryptor(t)

	count := 0
	sub := NewSubscriber(broker, enc)
	require.NoError(t, sub.Subscribe(context.Background(), "alerts", func(context.Context, string, any) { count++ }))
	require.NoError(t, sub.Unsubscribe(context.Background(), "alerts"))

	require.NoError(t, NewPublisher(broker, enc).Publish(context.Background(), "alerts", "fire"))
	assert.Equal(t, 0, count)
}

func TestPublish_Errors(t *testing.T) {
	enc := newTestEncryptor(t)

	broker := newFakeBroker()
	broker.publishErr = errors.New("not connected")
	err := NewPublisher(broker, enc).Publish(context.Background(), "t", "v")
	assert.EqualError(t, err, "not connected")

	hanging := newFakeBroker()
	hanging.hang = true
	err = NewPublisher(hanging, enc, WithTimeout(10*time.Millisecond)).Publish(context.Background(), "t", "v")
	assert.ErrorIs(t, err, ErrTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewPublisher(hanging, enc).Publish(ctx, "t", "v")
	assert.ErrorIs(t, err, context.Canceled)

	err = NewPublisher(newFakeBroker(), enc).Publish(context.Background(), "t", make(chan int))
	assert.Error(t, err)
}

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Config{})
	assert.Error(t, err)
}
