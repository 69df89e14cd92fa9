package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"

	"taixiu/internal/game"
)

func TestHubFiltersByUser(t *testing.T) {
	hub := NewHub(4, nil)
	alice, stopAlice := hub.Subscribe("alice")
	defer stopAlice()
	bob, stopBob := hub.Subscribe("bob")
	defer stopBob()

	hub.Publish(game.Event{Type: game.EventBetReady, UserID: "alice"})
	hub.Publish(game.Event{Type: game.EventStocksUpdate})

	require.Equal(t, game.EventBetReady, (<-alice).Type)
	require.Equal(t, game.EventStocksUpdate, (<-alice).Type)
	require.Equal(t, game.EventStocksUpdate, (<-bob).Type)
	require.Empty(t, bob)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(1, nil)
	ch, stop := hub.Subscribe("")
	defer stop()

	for i := 0; i < 5; i++ {
		hub.Publish(game.Event{Type: game.EventStocksUpdate})
	}
	require.Len(t, ch, 1)
	require.Equal(t, uint64(4), hub.Dropped())
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(1, nil)
	ch, stop := hub.Subscribe("alice")
	require.Equal(t, 1, hub.Len())

	stop()
	stop()
	require.Zero(t, hub.Len())
	_, open := <-ch
	require.False(t, open)

	hub.Publish(game.Event{Type: game.EventStocksUpdate})
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Publish(game.Event) { c.n++ }

func TestMultiFansOut(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	Multi{a, b}.Publish(game.Event{Type: game.EventAgentsUpdate})
	require.Equal(t, 1, a.n)
	require.Equal(t, 1, b.n)
}

func TestRedisPublisherFlush(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	pub := NewRedisPublisher(rdb, "taixiu:events", 8, nil)

	first := game.Event{Type: game.EventBalancesUpdate, Data: game.BalanceUpdate{UserID: "u1", Balance: 42}}
	second := game.Event{Type: game.EventStocksUpdate}
	for _, e := range []game.Event{first, second} {
		payload, err := json.Marshal(e)
		require.NoError(t, err)
		mock.ExpectPublish("taixiu:events", string(payload)).SetVal(1)
		pub.Publish(e)
	}

	require.NoError(t, pub.Flush(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisherReportsFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	pub := NewRedisPublisher(rdb, "taixiu:events", 8, nil)

	e := game.Event{Type: game.EventAgentsUpdate}
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	mock.ExpectPublish("taixiu:events", string(payload)).SetErr(errors.New("connection refused"))
	pub.Publish(e)

	require.Error(t, pub.Flush(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisherDropsWhenQueueFull(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	pub := NewRedisPublisher(rdb, "taixiu:events", 2, nil)
	for i := 0; i < 5; i++ {
		pub.Publish(game.Event{Type: game.EventStocksUpdate})
	}
	require.Equal(t, uint64(3), pub.Dropped())
}
