package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulti_PublishesToEverySink(t *testing.T) {
	var got []string
	first := SinkFunc(func(ctx context.Context, evt Event) error {
		got = append(got, "first")
		return errors.New("first down")
	})
	second := SinkFunc(func(ctx context.Context, evt Event) error {
		got = append(got, "second")
		return nil
	})
	third := SinkFunc(func(ctx context.Context, evt Event) error {
		got = append(got, "third")
		return errors.New("third down")
	})

	m := NewMulti(first, nil, second)
	m.Add(third)
	assert.Equal(t, 3, m.Len())

	err := m.Publish(context.Background(), New(TypeStatusUpdated, "org-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first down")
	assert.Contains(t, err.Error(), "third down")
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, NewMulti().Publish(context.Background(), New(TypeShipmentCreated, "org-1")))
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}

func TestRoutingKey(t *testing.T) {
	evt := New(TypeStatusUpdated, "org-7")
	assert.Equal(t, "org.org-7.status.updated", RoutingKey(evt))
	assert.Equal(t, "org:org-7:events", Channel("org-7"))
}

func TestRedisSink_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("org-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	evt := New(TypeStatusUpdated, "org-1")
	evt.TrackingNumber = "TRK-001"
	evt.Status = "delivered"
	require.NoError(t, NewRedisSink(client).Publish(ctx, evt))

	select {
	case msg := <-sub.Channel():
		var decoded Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &decoded))
		assert.Equal(t, "TRK-001", decoded.TrackingNumber)
		assert.Equal(t, TypeStatusUpdated, decoded.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
