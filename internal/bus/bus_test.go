package bus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/infer-no-dev/devkit/internal/bus"
)

func TestSendRoutesToSpecificRecipient(t *testing.T) {
	b := bus.New(4)
	a := b.Subscribe("a")
	other := b.Subscribe("other")

	b.Send(bus.Message{From: "sender", To: "a", Type: bus.TaskRequest, Payload: "hi"})

	msg := <-a
	require.Equal(t, "hi", msg.Payload)
	require.NotEmpty(t, msg.ID)
	require.False(t, msg.Timestamp.IsZero())

	select {
	case <-other:
		t.Fatal("message addressed to 'a' must not reach 'other'")
	default:
	}
}

func TestWildcardBroadcastsToAllSubscribers(t *testing.T) {
	b := bus.New(4)
	a := b.Subscribe("a")
	c := b.Subscribe("c")

	b.Send(bus.Message{From: "sender", To: bus.Wildcard, Type: bus.Heartbeat})

	require.Len(t, a, 1)
	require.Len(t, c, 1)
}

func TestFullInboxDropsOnlyForThatSubscriberAndIsCounted(t *testing.T) {
	b := bus.New(1)
	slow := b.Subscribe("slow")
	fast := b.Subscribe("fast")

	b.Send(bus.Message{From: "s", To: bus.Wildcard})
	b.Send(bus.Message{From: "s", To: bus.Wildcard}) // slow's queue (cap 1) is now full

	require.Len(t, slow, 1)
	require.Len(t, fast, 2)

	dropped, err := b.DroppedCount("slow")
	require.NoError(t, err)
	require.Equal(t, int64(1), dropped)
}

func TestSubscribeTwiceDropsPriorSubscription(t *testing.T) {
	b := bus.New(4)
	first := b.Subscribe("a")
	second := b.Subscribe("a")

	b.Send(bus.Message{From: "s", To: "a"})

	_, open := <-first
	require.False(t, open, "prior subscription's channel must be closed")
	require.Len(t, second, 1)
}

func TestMessagesToSameRecipientPreserveSubmissionOrder(t *testing.T) {
	b := bus.New(8)
	inbox := b.Subscribe("a")

	for i := 0; i < 5; i++ {
		b.Send(bus.Message{From: "s", To: "a", Payload: i})
	}

	for i := 0; i < 5; i++ {
		msg := <-inbox
		require.Equal(t, i, msg.Payload)
	}
}

func TestDroppedCountUnknownSubscriberIsNotFound(t *testing.T) {
	b := bus.New(4)
	_, err := b.DroppedCount("ghost")
	require.Error(t, err)
}
