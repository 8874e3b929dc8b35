package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"privchat/bus"
	"privchat/domain"
	"privchat/domain/event"
	priverr "privchat/errors"
	"privchat/mocks"
	"privchat/sink"
)

func newStoredMessage() *domain.Message {
	return &domain.Message{PID: uuid.New()}
}

func newTestSession(t *testing.T, store *mocks.MockStore, groupBus *bus.GroupBus) (*Session, *sink.ConnectionSink) {
	t.Helper()
	ctrl := gomock.NewController(t)
	hooks := mocks.NewMockHooks(ctrl)
	hooks.EXPECT().SenderMetadata(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	log := slog.Default()
	connSink := sink.NewConnectionSink(log, 16)
	session := NewSession(log, groupBus,
		NewValidator(log, store, testMaxTextLength),
		NewDispatcher(log, store, groupBus, hooks),
		NewPresence(log, store, groupBus),
		connSink)
	return session, connSink
}

func TestSession_Connect_Joins_Group_And_Notifies_Partners(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockStore(ctrl)
	groupBus := bus.New(slog.Default())
	session, connSink := newTestSession(t, store, groupBus)

	// Given bob is online
	bobSink := sink.NewConnectionSink(slog.Default(), 16)
	groupBus.Join(bob.PK, "bob-chan", bobSink)

	store.EXPECT().DialogGroupsFor(gomock.Any(), alice.PK).
		Return([]string{bob.PK, alice.PK}, nil)

	// When alice connects
	req.NoError(session.Connect(context.Background(), alice))

	// Then her channel is in her own group
	req.Equal(StateConnected, session.State())
	req.Contains(groupBus.Members(alice.PK), session.Channel())

	// And bob was told she went online
	req.Equal(event.WentOnline{Username: "alice"}, <-bobSink.Events)
	req.Empty(connSink.Events)
}

func TestSession_Connect_Rejects_Nil_User(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockStore(ctrl)
	groupBus := bus.New(slog.Default())
	session, _ := newTestSession(t, store, groupBus)

	err := session.Connect(context.Background(), nil)

	req.ErrorIs(err, priverr.ErrUnauthenticated)
	req.Equal(StateClosed, session.State())

	// And disconnecting afterwards touches neither the bus nor the store
	req.NoError(session.Disconnect(context.Background()))
}

func TestSession_Disconnect_Leaves_Group_And_Notifies_Partners(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockStore(ctrl)
	groupBus := bus.New(slog.Default())
	session, _ := newTestSession(t, store, groupBus)

	bobSink := sink.NewConnectionSink(slog.Default(), 16)
	groupBus.Join(bob.PK, "bob-chan", bobSink)

	store.EXPECT().DialogGroupsFor(gomock.Any(), alice.PK).
		Return([]string{bob.PK, alice.PK}, nil).Times(2)

	req.NoError(session.Connect(context.Background(), alice))
	<-bobSink.Events // went_online

	req.NoError(session.Disconnect(context.Background()))

	req.Equal(StateClosed, session.State())
	req.Empty(groupBus.Members(alice.PK))
	req.Equal(event.WentOffline{Username: "alice"}, <-bobSink.Events)
}

func TestSession_HandleFrame_Returns_Error_Frame_To_Sender_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockStore(ctrl)
	groupBus := bus.New(slog.Default())
	session, connSink := newTestSession(t, store, groupBus)

	store.EXPECT().DialogGroupsFor(gomock.Any(), alice.PK).Return(nil, nil)
	req.NoError(session.Connect(context.Background(), alice))

	resp, err := session.HandleFrame(context.Background(), []byte(`{"msg_type": 99}`))

	req.NoError(err)
	var out map[string]any
	req.NoError(json.Unmarshal(resp, &out))
	req.Equal(float64(1), out["error"].([]any)[0])

	// Nothing was broadcast, not even to the sender's own group
	req.Empty(connSink.Events)
}

func TestSession_HandleFrame_Before_Connect_Fails(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockStore(ctrl)
	session, _ := newTestSession(t, store, bus.New(slog.Default()))

	_, err := session.HandleFrame(context.Background(), []byte(`{"msg_type": 11}`))

	req.ErrorIs(err, priverr.ErrSessionClosed)
}

func TestSession_Suppresses_Echo_To_Originating_Connection_Only(t *testing.T) {
	req := require.New(t)
	session, _ := newTestSession(t, mocks.NewMockStore(gomock.NewController(t)), bus.New(slog.Default()))

	own := event.TextMessage{Text: "hi", SenderChannel: session.Channel()}
	other := event.TextMessage{Text: "hi", SenderChannel: "another-device"}

	frame, err := session.TranslateEvent(own)
	req.NoError(err)
	req.Nil(frame)

	frame, err = session.TranslateEvent(other)
	req.NoError(err)
	req.NotNil(frame)

	// Non-delivery events are never suppressed
	frame, err = session.TranslateEvent(event.MessageIDCreated{RandomID: -1, DBID: "pid-1"})
	req.NoError(err)
	req.NotNil(frame)
}

func TestSession_Text_Message_Reaches_Recipient_And_Other_Own_Devices(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := mocks.NewMockStore(ctrl)
	groupBus := bus.New(slog.Default())

	aliceSession, aliceSink := newTestSession(t, store, groupBus)
	bobSession, bobSink := newTestSession(t, store, groupBus)

	store.EXPECT().DialogGroupsFor(gomock.Any(), alice.PK).Return(nil, nil)
	store.EXPECT().DialogGroupsFor(gomock.Any(), bob.PK).Return(nil, nil)
	req.NoError(aliceSession.Connect(context.Background(), alice))
	req.NoError(bobSession.Connect(context.Background(), bob))

	store.EXPECT().FindUserByName(gomock.Any(), "bob").Return(bob, nil)
	store.EXPECT().CreateTextMessage(gomock.Any(), alice, bob, "hello", int64(-1), gomock.Nil()).
		Return(newStoredMessage(), nil)
	store.EXPECT().UnreadCount(gomock.Any(), alice.PK, bob.PK).Return(1, nil)

	resp, err := aliceSession.HandleFrame(context.Background(),
		[]byte(`{"msg_type": 3, "text": "hello", "user_pk": "bob", "random_id": -1}`))
	req.NoError(err)
	req.Nil(resp)

	// Bob's connection renders the delivery
	delivery := <-bobSink.Events
	frame, err := bobSession.TranslateEvent(delivery)
	req.NoError(err)
	req.NotNil(frame)

	// Alice's own connection got the delivery too, but suppressed as echo
	echo := <-aliceSink.Events
	frame, err = aliceSession.TranslateEvent(echo)
	req.NoError(err)
	req.Nil(frame)
}
