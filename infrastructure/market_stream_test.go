package infrastructure

import (
	"context"
	"testing"
	"time"

	"wagerbook/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan events.MarketChangedEvent) events.MarketChangedEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for market change")
		return events.MarketChangedEvent{}
	}
}

func TestMarketStream_FanOutInOrder(t *testing.T) {
	stream := NewMarketStream()
	first, unsubscribeFirst := stream.Subscribe()
	defer unsubscribeFirst()
	second, unsubscribeSecond := stream.Subscribe()
	defer unsubscribeSecond()

	ctx := context.Background()
	stream.Publish(ctx, events.MarketChangedEvent{MarketID: "m1", Kind: events.MarketChangeLocked})
	stream.Publish(ctx, events.MarketChangedEvent{MarketID: "m1", Kind: events.MarketChangeFinalized})

	for _, ch := range []<-chan events.MarketChangedEvent{first, second} {
		assert.Equal(t, events.MarketChangeLocked, receive(t, ch).Kind)
		assert.Equal(t, events.MarketChangeFinalized, receive(t, ch).Kind)
	}
}

func TestMarketStream_Unsubscribe(t *testing.T) {
	stream := NewMarketStream()
	ch, unsubscribe := stream.Subscribe()
	unsubscribe()
	unsubscribe()

	stream.Publish(context.Background(), events.MarketChangedEvent{MarketID: "m1"})
	assert.Len(t, ch, 0)
}

func TestMarketStream_FullSubscriberBlocksUntilContextEnds(t *testing.T) {
	stream := NewMarketStream()
	_, unsubscribe := stream.Subscribe()
	defer unsubscribe()

	ctx := context.Background()
	for i := 0; i < marketStreamBuffer; i++ {
		stream.Publish(ctx, events.MarketChangedEvent{MarketID: "m1"})
	}

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	stream.Publish(timeout, events.MarketChangedEvent{MarketID: "m1"})
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestMarketStream_HandleEventIgnoresOtherEvents(t *testing.T) {
	stream := NewMarketStream()
	ch, unsubscribe := stream.Subscribe()
	defer unsubscribe()

	require.NoError(t, stream.HandleEvent(context.Background(), events.UserCreatedEvent{UserID: "alice"}))
	assert.Len(t, ch, 0)

	require.NoError(t, stream.HandleEvent(context.Background(), events.MarketChangedEvent{MarketID: "m2", Kind: events.MarketChangeUpdated}))
	assert.Equal(t, "m2", receive(t, ch).MarketID)
}

func TestMarketStream_Close(t *testing.T) {
	stream := NewMarketStream()
	ch, _ := stream.Subscribe()
	stream.Close()

	stream.Publish(context.Background(), events.MarketChangedEvent{MarketID: "m1"})
	assert.Len(t, ch, 0)

	late, _ := stream.Subscribe()
	_, ok := <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}
