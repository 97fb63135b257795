package queue_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bitchat/internal/domain"
	"bitchat/internal/queue"
)

func inbound(body string) domain.Message {
	return domain.Message{Body: body, Direction: domain.Inbound}
}

func TestDequeue_FIFOOrder(t *testing.T) {
	q := queue.NewInbound()
	for _, body := range []string{"first", "second", "third"} {
		require.True(t, q.Enqueue(inbound(body)))
	}
	require.Equal(t, 3, q.Len())

	for _, want := range []string{"first", "second", "third"} {
		e, ok := q.Dequeue(time.Second)
		require.True(t, ok)
		require.Equal(t, want, e.Message.Body)
		require.False(t, e.EnqueuedAt.IsZero())
	}
	require.Equal(t, 0, q.Len())
}

func TestDequeue_Empty_TimesOut(t *testing.T) {
	q := queue.NewInbound()

	start := time.Now()
	_, ok := q.Dequeue(30 * time.Millisecond)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDequeue_WakesOnEnqueue(t *testing.T) {
	q := queue.NewInbound()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Enqueue(inbound("late arrival"))
	}()

	e, ok := q.Dequeue(5 * time.Second)
	require.True(t, ok)
	require.Equal(t, "late arrival", e.Message.Body)
}

func TestClose_WakesBlockedConsumer(t *testing.T) {
	q := queue.NewInbound()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Close()
	}()

	start := time.Now()
	_, ok := q.Dequeue(5 * time.Second)
	require.False(t, ok)
	require.Less(t, time.Since(start), time.Second)
	require.True(t, q.Closed())
}

func TestEnqueue_AfterClose_Dropped(t *testing.T) {
	q := queue.NewInbound()
	q.Close()
	q.Close() // idempotent

	require.False(t, q.Enqueue(inbound("lost")))
	require.Equal(t, 0, q.Len())
}

func TestDequeue_AfterClose_DrainsRemainder(t *testing.T) {
	q := queue.NewInbound()
	q.Enqueue(inbound("one"))
	q.Enqueue(inbound("two"))
	q.Close()

	e, ok := q.Dequeue(time.Second)
	require.True(t, ok)
	require.Equal(t, "one", e.Message.Body)

	e, ok = q.Dequeue(time.Second)
	require.True(t, ok)
	require.Equal(t, "two", e.Message.Body)

	_, ok = q.Dequeue(10 * time.Millisecond)
	require.False(t, ok)
}

func TestEnqueue_Concurrent_LosesNothing(t *testing.T) {
	const producers = 4
	const perProducer = 50

	q := queue.NewInbound()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(inbound(fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[string]bool, producers*perProducer)
	lastPerProducer := make(map[string]int, producers)
	for i := 0; i < producers*perProducer; i++ {
		e, ok := q.Dequeue(time.Second)
		require.True(t, ok)
		require.False(t, seen[e.Message.Body], "duplicate %s", e.Message.Body)
		seen[e.Message.Body] = true

		// Per-producer order survives interleaving.
		var p, n int
		_, err := fmt.Sscanf(e.Message.Body, "p%d-%d", &p, &n)
		require.NoError(t, err)
		key := fmt.Sprintf("p%d", p)
		if last, ok := lastPerProducer[key]; ok {
			require.Greater(t, n, last)
		}
		lastPerProducer[key] = n
	}
	require.Equal(t, 0, q.Len())
}
