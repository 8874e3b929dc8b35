package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"privchat/contract"
	"privchat/domain"
	"privchat/domain/event"
	priverr "privchat/errors"
	"privchat/wire"
)

// Dispatcher executes validated intents: store reads and writes plus
// bus publishes, in the mandated order for each message kind. It holds
// no per-connection state; the acting session is passed per call.
type Dispatcher struct {
	log   *slog.Logger
	store contract.Store
	bus   contract.GroupBus
	hooks contract.Hooks
}

func NewDispatcher(log *slog.Logger, store contract.Store, bus contract.GroupBus, hooks contract.Hooks) *Dispatcher {
	return &Dispatcher{log: log, store: store, bus: bus, hooks: hooks}
}

// Dispatch runs one intent on behalf of the session identified by self
// and channel. A wire error goes back to the originating connection
// only; a plain error is a store fault and fails the connection.
func (d *Dispatcher) Dispatch(ctx context.Context, self *domain.User, channel string, intent Intent) (*wire.Error, error) {
	switch in := intent.(type) {
	case IgnoredIntent:
		d.log.Info(fmt.Sprintf("Ignoring message %s from user %s", in.Type, self.PK))
		return nil, nil
	case TypingIntent:
		return nil, d.dispatchTyping(ctx, self, in)
	case ReadIntent:
		return d.dispatchRead(ctx, self, in)
	case TextIntent:
		return nil, d.dispatchText(ctx, self, channel, in)
	case FileIntent:
		return nil, d.dispatchFile(ctx, self, channel, in)
	case HeartbeatIntent:
		return d.hooks.OnHeartbeat(ctx, self, in.Payload), nil
	}
	return nil, fmt.Errorf("unhandled intent %T", intent)
}

// dispatchTyping publishes the transient signal either to the one named
// group or to every dialog-partner group of the sender. Nothing is
// persisted.
func (d *Dispatcher) dispatchTyping(ctx context.Context, self *domain.User, in TypingIntent) error {
	signal := func() event.Event {
		if in.Stopped {
			return event.TypingStopped{Username: self.Username}
		}
		return event.IsTyping{Username: self.Username}
	}()

	if in.Target != nil {
		d.bus.Publish(ctx, in.Target.GroupName(), signal)
		return nil
	}
	groups, err := d.store.DialogGroupsFor(ctx, self.PK)
	if err != nil {
		return fmt.Errorf("computing dialog groups for %s: %w", self.PK, err)
	}
	for _, g := range groups {
		if g == self.GroupName() {
			continue
		}
		d.bus.Publish(ctx, g, signal)
	}
	return nil
}

// dispatchRead implements the optimistic read receipt: the
// notification to the counterpart group is published before the
// consistency check, and is deliberately not retracted when the check
// fails afterwards.
func (d *Dispatcher) dispatchRead(ctx context.Context, self *domain.User, in ReadIntent) (*wire.Error, error) {
	d.bus.Publish(ctx, in.Target.GroupName(), event.MessageRead{
		MessageID: in.MessageID,
		Sender:    in.Target.Username,
		Receiver:  self.Username,
	})

	recipient, sender, err := d.store.FindMessage(ctx, in.MessageID)
	if errors.Is(err, priverr.ErrNotFound) {
		return wire.NewError(wire.InvalidMessageReadID, "Message with pid %s does not exist", in.MessageID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up message %s: %w", in.MessageID, err)
	}
	// Order-sensitive: self must be the recipient of record, the claimed
	// counterpart the sender of record.
	if recipient != self.PK || sender != in.Target.PK {
		return wire.NewError(wire.InvalidMessageReadID,
			"Message with pid %s was not sent by %s to %s", in.MessageID, in.Target.PK, self.PK), nil
	}

	if err := d.store.MarkRead(ctx, in.MessageID); err != nil {
		return nil, fmt.Errorf("marking message %s read: %w", in.MessageID, err)
	}
	count, err := d.store.UnreadCount(ctx, in.Target.PK, self.PK)
	if err != nil {
		return nil, fmt.Errorf("recomputing unread count: %w", err)
	}
	d.bus.Publish(ctx, self.GroupName(), event.NewUnreadCount{
		Sender: in.Target.Username,
		Count:  count,
	})
	return nil, nil
}

// dispatchText publishes the optimistic delivery event before
// persisting, so clients render without waiting on storage latency.
// Order: delivery event, persist, id-assignment event, unread-count
// event.
func (d *Dispatcher) dispatchText(ctx context.Context, self *domain.User, channel string, in TextIntent) error {
	extras := mergeExtras(in.Preview, d.hooks.SenderMetadata(ctx, self))
	delivery := event.TextMessage{
		Extras:        extras,
		RandomID:      in.RandomID,
		Text:          in.Text,
		Sender:        self.Username,
		Receiver:      in.Target.Username,
		SenderChannel: channel,
	}
	d.bus.Publish(ctx, in.Target.GroupName(), delivery)
	d.bus.Publish(ctx, self.GroupName(), delivery)

	d.log.Debug(fmt.Sprintf("Saving text message from %s to %s", self.PK, in.Target.PK))
	msg, err := d.store.CreateTextMessage(ctx, self, in.Target, in.Text, in.RandomID, in.Preview)
	if err != nil {
		return fmt.Errorf("persisting text message: %w", err)
	}
	return d.afterMessageSave(ctx, self, in.Target, in.RandomID, msg.PID.String())
}

// dispatchFile persists first (the delivery event needs the durable id
// and the file descriptor), then publishes a single delivery event to
// both groups, then the unread count to the recipient.
func (d *Dispatcher) dispatchFile(ctx context.Context, self *domain.User, channel string, in FileIntent) error {
	d.log.Debug(fmt.Sprintf("Saving file message from %s to %s", self.PK, in.Target.PK))
	msg, err := d.store.CreateFileMessage(ctx, self, in.Target, in.File)
	if err != nil {
		return fmt.Errorf("persisting file message: %w", err)
	}
	delivery := event.FileMessage{
		Extras:        event.Extras(d.hooks.SenderMetadata(ctx, self)),
		DBID:          msg.PID.String(),
		File:          in.File.Serialize(),
		Sender:        self.Username,
		Receiver:      in.Target.Username,
		SenderChannel: channel,
	}
	d.bus.Publish(ctx, in.Target.GroupName(), delivery)
	d.bus.Publish(ctx, self.GroupName(), delivery)

	return d.publishUnread(ctx, self, in.Target)
}

// afterMessageSave reconciles the optimistic random id with the durable
// id on both sides of the dialog, then propagates the recipient's new
// unread count.
func (d *Dispatcher) afterMessageSave(ctx context.Context, self, target *domain.User, randomID int64, pid string) error {
	d.log.Info(fmt.Sprintf("Message %s saved, firing id events to %s and %s", pid, target.PK, self.PK))
	created := event.MessageIDCreated{RandomID: randomID, DBID: pid}
	d.bus.Publish(ctx, target.GroupName(), created)
	d.bus.Publish(ctx, self.GroupName(), created)

	return d.publishUnread(ctx, self, target)
}

func (d *Dispatcher) publishUnread(ctx context.Context, self, target *domain.User) error {
	count, err := d.store.UnreadCount(ctx, self.PK, target.PK)
	if err != nil {
		return fmt.Errorf("recomputing unread count: %w", err)
	}
	d.bus.Publish(ctx, target.GroupName(), event.NewUnreadCount{
		Sender: self.Username,
		Count:  count,
	})
	return nil
}

func mergeExtras(maps ...map[string]any) event.Extras {
	var out event.Extras
	for _, m := range maps {
		for k, v := range m {
			if out == nil {
				out = make(event.Extras)
			}
			out[k] = v
		}
	}
	return out
}
