package crm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/crm"
)

func TestBroadcaster_FiltersByCollection(t *testing.T) {
	var b crm.Broadcaster
	bills, cancel := b.Subscribe(context.Background(), crm.CollectionBills)
	defer cancel()

	b.Publish(crm.Change{Collection: crm.CollectionTasks, Op: crm.OpInsert, ID: "t1"})
	b.Publish(crm.Change{Collection: crm.CollectionBills, Op: crm.OpUpdate, ID: "b1"})

	select {
	case c := <-bills:
		assert.Equal(t, "b1", c.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a bill change")
	}
	assert.Len(t, bills, 0)
}

func TestBroadcaster_AllCollectionsWhenNoneGiven(t *testing.T) {
	var b crm.Broadcaster
	ch, cancel := b.Subscribe(context.Background())
	defer cancel()

	b.Publish(crm.Change{Collection: crm.CollectionTasks})
	b.Publish(crm.Change{Collection: crm.CollectionCustomers})

	assert.Len(t, ch, 2)
}

func TestBroadcaster_PublishNeverBlocks(t *testing.T) {
	var b crm.Broadcaster
	_, cancel := b.Subscribe(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(crm.Change{Collection: crm.CollectionTasks})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBroadcaster_CancelClosesChannel(t *testing.T) {
	var b crm.Broadcaster
	ctx, stop := context.WithCancel(context.Background())
	ch, cancel := b.Subscribe(ctx)
	require.Equal(t, 1, b.Subscribers())

	stop()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
	assert.Equal(t, 0, b.Subscribers())
	cancel() // second cancel is a no-op
}
