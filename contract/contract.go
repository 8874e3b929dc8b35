//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"privchat/domain"
	"privchat/domain/event"
	"privchat/wire"
)

// Store is the durable persistence collaborator. Lookups for absent
// records return errors.ErrNotFound. Create and update operations are
// atomic; UnreadCount reflects the store state at call time.
type Store interface {
	FindUser(ctx context.Context, pk string) (*domain.User, error)
	FindUserByName(ctx context.Context, username string) (*domain.User, error)
	FindFile(ctx context.Context, id string) (*domain.UploadedFile, error)
	// FindMessage returns the recorded recipient and sender PKs of a
	// persisted message.
	FindMessage(ctx context.Context, pid string) (recipient, sender string, err error)
	MarkRead(ctx context.Context, pid string) error
	// UnreadCount tallies unread messages sent by from to to.
	UnreadCount(ctx context.Context, from, to string) (int, error)
	CreateTextMessage(ctx context.Context, sender, recipient *domain.User, text string, randomID int64, extra map[string]any) (*domain.Message, error)
	CreateFileMessage(ctx context.Context, sender, recipient *domain.User, file *domain.UploadedFile) (*domain.Message, error)
	// DialogGroupsFor returns the flattened set of group names for every
	// dialog the user participates in. The user's own group is included;
	// presence fan-out filters it out by identifier comparison.
	DialogGroupsFor(ctx context.Context, pk string) ([]string, error)
}

// EventSink receives events published to a group a subscriber has
// joined. Implementations must not block the publisher.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// GroupBus is the pub/sub primitive. Delivery is at-least-once to every
// sink currently joined; per-group publish order is preserved, order
// across distinct groups is not.
type GroupBus interface {
	Join(group, channel string, sink EventSink)
	Leave(group, channel string)
	Publish(ctx context.Context, group string, e event.Event)
}

// Hooks are capabilities supplied by the embedding application. They
// are injected at construction; there is no subclassing contract that
// fails at call time.
type Hooks interface {
	// SenderMetadata returns extra fields merged into every outbound
	// delivery event originated by user.
	SenderMetadata(ctx context.Context, user *domain.User) map[string]any
	// OnHeartbeat processes a heartbeat payload. A non-nil result is
	// reported back to the originating connection as an error frame.
	OnHeartbeat(ctx context.Context, user *domain.User, payload map[string]any) *wire.Error
}

// Authenticator resolves connect-time credentials to a user. A failed
// resolution rejects the connection with the distinguished close code.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Worker is a supervised long-running task.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the
// worker, for logging and supervision purposes.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
