package broker_test

import (
	"sync"
	"testing"
	"time"

	"github.com/finbank/backend/internal/infrastructure/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	defer bus.Close()

	received := make(chan broker.Message, 1)
	_, err := bus.Subscribe("validation.customer.request", func(msg broker.Message) {
		received <- msg
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("validation.customer.request", []byte("hello")))

	select {
	case msg := <-received:
		assert.Equal(t, "validation.customer.request", msg.Subject)
		assert.Equal(t, []byte("hello"), msg.Data)
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	defer bus.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		_, err := bus.Subscribe("topic", func(broker.Message) { wg.Done() })
		require.NoError(t, err)
	}

	require.NoError(t, bus.Publish("topic", []byte("x")))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the message")
	}
}

func TestMemoryBus_SubjectIsolation(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	defer bus.Close()

	received := make(chan broker.Message, 1)
	_, err := bus.Subscribe("topic.a", func(msg broker.Message) { received <- msg })
	require.NoError(t, err)

	require.NoError(t, bus.Publish("topic.b", []byte("x")))

	select {
	case <-received:
		t.Fatal("subscriber received a message from an unrelated subject")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	defer bus.Close()

	received := make(chan broker.Message, 1)
	sub, err := bus.Subscribe("topic", func(msg broker.Message) { received <- msg })
	require.NoError(t, err)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish("topic", []byte("x")))

	select {
	case <-received:
		t.Fatal("unsubscribed handler received a message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBus_PanickingHandlerDoesNotKillBus(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	defer bus.Close()

	_, err := bus.Subscribe("topic", func(broker.Message) { panic("boom") })
	require.NoError(t, err)

	received := make(chan broker.Message, 1)
	_, err = bus.Subscribe("topic", func(msg broker.Message) { received <- msg })
	require.NoError(t, err)

	require.NoError(t, bus.Publish("topic", []byte("x")))

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("healthy subscriber starved by panicking one")
	}
}

func TestMemoryBus_Close(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	bus.Close()

	err := bus.Publish("topic", []byte("x"))
	assert.ErrorIs(t, err, broker.ErrClosed)

	_, err = bus.Subscribe("topic", func(broker.Message) {})
	assert.ErrorIs(t, err, broker.ErrClosed)
}

func TestMemoryBus_EmptySubject(t *testing.T) {
	bus := broker.NewMemoryBus(nil)
	defer bus.Close()

	assert.ErrorIs(t, bus.Publish("", nil), broker.ErrEmptySubject)
	_, err := bus.Subscribe("", func(broker.Message) {})
	assert.ErrorIs(t, err, broker.ErrEmptySubject)
}
