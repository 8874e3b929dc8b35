package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"

	"privchat/contract"
	"privchat/domain"
	"privchat/domain/event"
	priverr "privchat/errors"
	"privchat/wire"
)

// State is the session lifecycle: Unauthenticated -> Connected ->
// Closed. An auth-rejected connection goes straight to Closed without
// ever joining a group.
type State int

const (
	StateUnauthenticated State = iota
	StateConnected
	StateClosed
)

// Session owns one connection's lifecycle: group membership, identity,
// frame handling and translation of bus events back to wire frames.
// All methods are called from the connection's own goroutines; Session
// itself holds no locks.
type Session struct {
	log        *slog.Logger
	bus        contract.GroupBus
	validator  *Validator
	dispatcher *Dispatcher
	presence   *Presence
	sink       contract.EventSink

	parser  fastjson.Parser
	state   State
	user    *domain.User
	channel string
}

// NewSession binds a fresh channel name to a connection's sink. The
// channel name is unique per connection so a user's other devices still
// receive that connection's own messages.
func NewSession(log *slog.Logger, bus contract.GroupBus, validator *Validator,
	dispatcher *Dispatcher, presence *Presence, sink contract.EventSink) *Session {
	return &Session{
		log:        log,
		bus:        bus,
		validator:  validator,
		dispatcher: dispatcher,
		presence:   presence,
		sink:       sink,
		channel:    uuid.NewString(),
	}
}

func (s *Session) Channel() string { return s.channel }

func (s *Session) State() State { return s.state }

func (s *Session) User() *domain.User { return s.user }

// Connect transitions to Connected: join the user's own group, then
// notify dialog partners. A nil user means authentication failed; the
// session closes immediately and the transport must emit close code
// 4001 with no further processing.
func (s *Session) Connect(ctx context.Context, user *domain.User) error {
	if user == nil {
		s.state = StateClosed
		return priverr.ErrUnauthenticated
	}
	s.user = user
	s.state = StateConnected
	s.log.Info(fmt.Sprintf("User %s connected, adding channel %s to group %s", user.PK, s.channel, user.GroupName()))
	s.bus.Join(user.GroupName(), s.channel, s.sink)
	return s.presence.NotifyOnline(ctx, user)
}

// Disconnect cleans up only if the session ever reached Connected,
// which keeps the auth-rejection path from leaving or notifying
// anything.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.state != StateConnected {
		return nil
	}
	s.state = StateClosed
	s.log.Info(fmt.Sprintf("User %s disconnected, removing channel %s from group %s", s.user.PK, s.channel, s.user.GroupName()))
	s.bus.Leave(s.user.GroupName(), s.channel)
	return s.presence.NotifyOffline(ctx, s.user)
}

// HandleFrame processes one inbound frame: decode, validate, dispatch.
// A validation failure yields exactly one error frame for this session
// only, never a broadcast; the returned bytes are nil when there is
// nothing to send back. A non-nil error is a store fault that fails the
// connection.
func (s *Session) HandleFrame(ctx context.Context, data []byte) ([]byte, error) {
	if s.state != StateConnected {
		return nil, priverr.ErrSessionClosed
	}
	werr, err := s.handle(ctx, data)
	if err != nil {
		return nil, err
	}
	if werr == nil {
		return nil, nil
	}
	s.log.Info(fmt.Sprintf("Sending error [%d, %s] to user %s", werr.Kind, werr.Message, s.user.PK))
	return wire.EncodeError(werr)
}

func (s *Session) handle(ctx context.Context, data []byte) (*wire.Error, error) {
	frame, werr := wire.Decode(&s.parser, data)
	if werr != nil {
		return werr, nil
	}
	s.log.Debug(fmt.Sprintf("Received %s frame from user %s", frame.Type, s.user.PK))
	intent, werr, err := s.validator.Validate(ctx, s.user, frame)
	if werr != nil || err != nil {
		return werr, err
	}
	return s.dispatcher.Dispatch(ctx, s.user, s.channel, intent)
}

// TranslateEvent turns a bus event into the outbound frame for this
// connection. Delivery events originated by this exact connection are
// suppressed: the sender's other sessions still receive them, the
// originating one does not. Returns nil bytes when suppressed.
func (s *Session) TranslateEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case event.TextMessage:
		if e.SenderChannel == s.channel {
			return nil, nil
		}
	case event.FileMessage:
		if e.SenderChannel == s.channel {
			return nil, nil
		}
	}
	return wire.EncodeEvent(evt)
}
