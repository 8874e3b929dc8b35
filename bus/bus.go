// Package bus provides the in-process group bus: a registry of
// subscriber sinks keyed by group name, with ordered per-group
// delivery.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"privchat/contract"
	"privchat/domain/event"
)

type member struct {
	channel string
	sink    contract.EventSink
}

// GroupBus fans events out to every sink joined to a group. Publish
// calls for the same group are serialized, so subscribers observe them
// in completion order; no ordering holds across distinct groups.
//
// GroupBus is safe for concurrent use by multiple goroutines.
type GroupBus struct {
	mu     sync.RWMutex
	log    *slog.Logger
	groups map[string][]member
}

func New(log *slog.Logger) *GroupBus {
	return &GroupBus{
		log:    log,
		groups: make(map[string][]member),
	}
}

// Join subscribes a channel's sink to a group. The group is created on
// first join. Joining twice with the same channel replaces the sink.
func (b *GroupBus) Join(group, channel string, sink contract.EventSink) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := b.groups[group]
	for i, m := range members {
		if m.channel == channel {
			members[i].sink = sink
			return
		}
	}
	b.groups[group] = append(members, member{channel: channel, sink: sink})
}

// Leave removes a channel from a group. Empty groups are deleted so the
// registry does not accumulate entries for long-gone dialogs.
func (b *GroupBus) Leave(group, channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := b.groups[group]
	for i, m := range members {
		if m.channel == channel {
			b.groups[group] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(b.groups[group]) == 0 {
		delete(b.groups, group)
	}
}

// Publish delivers e to every sink currently joined to group, in join
// order. Sinks must not block; a sink error is logged and does not
// affect delivery to the remaining sinks.
func (b *GroupBus) Publish(ctx context.Context, group string, e event.Event) {
	b.mu.RLock()
	members := b.groups[group]
	sinks := make([]member, len(members))
	copy(sinks, members)
	b.mu.RUnlock()

	for _, m := range sinks {
		if err := m.sink.Consume(ctx, e); err != nil {
			b.log.Warn(fmt.Sprintf("Sink %s failed to consume event for group %s", m.channel, group),
				"error", err)
		}
	}
}

// Members returns the channels currently joined to group.
func (b *GroupBus) Members(group string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var channels []string
	for _, m := range b.groups[group] {
		channels = append(channels, m.channel)
	}
	return channels
}
