package alertbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/models"
)

func TestSubscribe_DeliversConnectedMessageFirst(t *testing.T) {
	b := New()
	id, msgs, unsubscribe := b.Subscribe()
	defer unsubscribe()

	msg := <-msgs
	assert.Equal(t, KindConnected, msg.Kind)
	assert.Equal(t, id.String(), msg.Data)
}

func TestPublishTrade_BroadcastsToAllSubscribers(t *testing.T) {
	b := New()
	_, msgsA, unsubA := b.Subscribe()
	_, msgsB, unsubB := b.Subscribe()
	defer unsubA()
	defer unsubB()

	<-msgsA // drain connected
	<-msgsB

	tr := models.Trade{TxHash: "0x1", TokenID: "tok"}
	b.PublishTrade(tr)

	msgA := <-msgsA
	msgB := <-msgsB
	assert.Equal(t, KindNewTrade, msgA.Kind)
	assert.Equal(t, KindNewTrade, msgB.Kind)
	assert.Equal(t, tr, msgA.Data)
}

func TestSend_DropsWhenSubscriberQueueIsFull(t *testing.T) {
	b := New()
	id, msgs, unsubscribe := b.Subscribe()
	defer unsubscribe()

	<-msgs // drain connected

	// Fill the bounded queue without draining it.
	for i := 0; i < subscriberQueueSize+5; i++ {
		b.PublishAlert(models.Alert{})
	}

	assert.Equal(t, uint64(5), b.DroppedCount(id), "messages beyond the bounded queue must be dropped and counted, not blocked on")

	// The queue itself must still hold exactly its capacity.
	count := 0
	for {
		select {
		case <-msgs:
			count++
		default:
			assert.Equal(t, subscriberQueueSize, count)
			return
		}
	}
}

func TestDroppedCount_UnknownSubscriberIsZero(t *testing.T) {
	b := New()
	id, _, unsubscribe := b.Subscribe()
	unsubscribe()

	assert.Equal(t, uint64(0), b.DroppedCount(id), "an unsubscribed id must report zero drops rather than panic")
}

func TestUnsubscribe_ClosesChannelAndDropsSubscriberCount(t *testing.T) {
	b := New()
	_, msgs, unsubscribe := b.Subscribe()
	require.Equal(t, 1, b.SubscriberCount())

	<-msgs // connected
	unsubscribe()

	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-msgs
	assert.False(t, open, "unsubscribe must close the subscriber channel")
}

func TestPublishAfterUnsubscribe_DoesNotPanic(t *testing.T) {
	b := New()
	_, msgs, unsubscribe := b.Subscribe()
	<-msgs
	unsubscribe()

	assert.NotPanics(t, func() {
		b.PublishTrade(models.Trade{TxHash: "0x1"})
	})
}

func TestResync_OnlyTargetsRequestedSubscriber(t *testing.T) {
	b := New()
	idA, msgsA, unsubA := b.Subscribe()
	_, msgsB, unsubB := b.Subscribe()
	defer unsubA()
	defer unsubB()

	<-msgsA
	<-msgsB

	b.Resync(idA)

	msg := <-msgsA
	assert.Equal(t, KindResync, msg.Kind)

	select {
	case <-msgsB:
		t.Fatal("resync must not reach other subscribers")
	default:
	}
}
