package bus

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"privchat/domain/event"
)

// recordingSink appends every consumed event, optionally failing.
type recordingSink struct {
	events []event.Event
	err    error
}

func (s *recordingSink) Consume(ctx context.Context, e event.Event) error {
	s.events = append(s.events, e)
	return s.err
}

func TestGroupBus_Join_One_Group_One_Channel(t *testing.T) {
	req := require.New(t)
	bus := New(slog.Default())
	channel := uuid.NewString()
	sink := &recordingSink{}

	// Given an empty registry
	req.Empty(bus.Members("alice"))

	// When a channel joins a group
	bus.Join("alice", channel, sink)

	// Then
	req.Equal([]string{channel}, bus.Members("alice"))
}

func TestGroupBus_Publish_Delivers_In_Join_Order(t *testing.T) {
	req := require.New(t)
	bus := New(slog.Default())
	sink1 := &recordingSink{}
	sink2 := &recordingSink{}
	bus.Join("alice", uuid.NewString(), sink1)
	bus.Join("alice", uuid.NewString(), sink2)

	evt := event.WentOnline{Username: "bob"}
	bus.Publish(context.Background(), "alice", evt)

	req.Equal([]event.Event{evt}, sink1.events)
	req.Equal([]event.Event{evt}, sink2.events)
}

func TestGroupBus_Publish_Unknown_Group_Is_A_Noop(t *testing.T) {
	bus := New(slog.Default())

	bus.Publish(context.Background(), "nobody", event.WentOnline{Username: "bob"})
}

func TestGroupBus_Join_Same_Channel_Replaces_Sink(t *testing.T) {
	req := require.New(t)
	bus := New(slog.Default())
	channel := uuid.NewString()
	stale := &recordingSink{}
	fresh := &recordingSink{}

	bus.Join("alice", channel, stale)
	bus.Join("alice", channel, fresh)

	bus.Publish(context.Background(), "alice", event.WentOnline{Username: "bob"})

	// Then only the fresh sink receives, and the group has one member
	req.Empty(stale.events)
	req.Len(fresh.events, 1)
	req.Equal([]string{channel}, bus.Members("alice"))
}

func TestGroupBus_Leave_Deletes_Empty_Group(t *testing.T) {
	req := require.New(t)
	bus := New(slog.Default())
	channel1 := uuid.NewString()
	channel2 := uuid.NewString()
	sink1 := &recordingSink{}
	sink2 := &recordingSink{}

	bus.Join("alice", channel1, sink1)
	bus.Join("alice", channel2, sink2)

	// When one channel leaves
	bus.Leave("alice", channel1)
	req.Equal([]string{channel2}, bus.Members("alice"))

	// And the last channel leaves
	bus.Leave("alice", channel2)
	req.Empty(bus.Members("alice"))

	// Then publishing reaches nobody
	bus.Publish(context.Background(), "alice", event.WentOnline{Username: "bob"})
	req.Empty(sink1.events)
	req.Empty(sink2.events)
}

func TestGroupBus_Failing_Sink_Does_Not_Stop_Delivery(t *testing.T) {
	req := require.New(t)
	bus := New(slog.Default())
	failing := &recordingSink{err: errors.New("sink full")}
	healthy := &recordingSink{}

	bus.Join("alice", uuid.NewString(), failing)
	bus.Join("alice", uuid.NewString(), healthy)

	bus.Publish(context.Background(), "alice", event.WentOnline{Username: "bob"})

	req.Len(failing.events, 1)
	req.Len(healthy.events, 1)
}
