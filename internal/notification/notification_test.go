package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type failingNotifier struct{}

func (failingNotifier) Send(context.Context, Message) error { return errors.New("down") }

type recordingNotifier struct{ got []Message }

func (r *recordingNotifier) Send(_ context.Context, m Message) error {
	r.got = append(r.got, m)
	return nil
}

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	n := NewRedisNotifier(client, "")
	msg := Message{Kind: KindDepositApplied, Ledger: "bank", Counterparty: "token", Account: "alice", Amount: "100"}
	require.NoError(t, n.Send(ctx, msg))

	select {
	case got := <-sub.Channel():
		var decoded Message
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &decoded))
		require.Equal(t, msg, decoded)
	case <-time.After(2 * time.Second):
		t.Fatal("event not published")
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	rec := &recordingNotifier{}
	m := Multi{failingNotifier{}, nil, rec}

	err := m.Send(context.Background(), Message{Kind: KindRelayRequested})
	require.Error(t, err)
	require.Len(t, rec.got, 1)
}
