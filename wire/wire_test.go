package wire

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"privchat/domain/event"
)

func mustDecode(t *testing.T, data string) *Frame {
	t.Helper()
	var p fastjson.Parser
	f, werr := Decode(&p, []byte(data))
	require.Nil(t, werr)
	return f
}

func TestDecode_Rejects_Malformed_Envelopes(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"not an object", `[1, 2, 3]`},
		{"missing msg_type", `{"text": "hello"}`},
		{"msg_type is a string", `{"msg_type": "3"}`},
		{"msg_type is a float", `{"msg_type": 3.5}`},
		{"msg_type unknown low", `{"msg_type": 0}`},
		{"msg_type unknown high", `{"msg_type": 12}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			var p fastjson.Parser

			f, werr := Decode(&p, []byte(c.data))

			// Then a parsing error, never a frame
			req.Nil(f)
			req.NotNil(werr)
			req.Equal(MessageParsingError, werr.Kind)
		})
	}
}

func TestDecode_Accepts_All_Known_Kinds(t *testing.T) {
	req := require.New(t)
	var p fastjson.Parser
	for n := int(WentOnline); n <= int(Heartbeat); n++ {
		f, werr := Decode(&p, []byte(fmt.Sprintf(`{"msg_type": %d}`, n)))
		req.Nil(werr)
		req.Equal(MessageType(n), f.Type)
	}
}

func TestFrame_StringField(t *testing.T) {
	req := require.New(t)
	f := mustDecode(t, `{"msg_type": 3, "text": "hello", "random_id": -1}`)

	val, present, ok := f.StringField("text")
	req.True(present)
	req.True(ok)
	req.Equal("hello", val)

	// Present but not a string
	_, present, ok = f.StringField("random_id")
	req.True(present)
	req.False(ok)

	// Absent
	_, present, ok = f.StringField("user_pk")
	req.False(present)
	req.False(ok)
}

func TestFrame_IntField(t *testing.T) {
	req := require.New(t)
	f := mustDecode(t, `{"msg_type": 3, "random_id": -42, "text": "x", "frac": 1.5}`)

	val, present, ok := f.IntField("random_id")
	req.True(present)
	req.True(ok)
	req.Equal(int64(-42), val)

	// Present but not an int
	_, present, ok = f.IntField("text")
	req.True(present)
	req.False(ok)

	// Fractional numbers are not ints
	_, present, ok = f.IntField("frac")
	req.True(present)
	req.False(ok)

	_, present, _ = f.IntField("missing")
	req.False(present)
}

func TestFrame_MetadataFields_Keeps_Matching_Keys_Only(t *testing.T) {
	req := require.New(t)
	f := mustDecode(t, `{"msg_type": 3, "text": "x", "url_preview": {"title": "t", "width": 120}, "preview_ok": true}`)

	extra := f.MetadataFields(func(key string) bool {
		return key == "url_preview" || key == "preview_ok"
	})

	req.Len(extra, 2)
	req.Equal(true, extra["preview_ok"])
	req.Equal(map[string]any{"title": "t", "width": int64(120)}, extra["url_preview"])
}

func TestError_Serializes_As_Tuple(t *testing.T) {
	req := require.New(t)
	werr := NewError(TextMessageInvalid, "'text' should not be blank")

	raw, err := json.Marshal(werr)
	req.NoError(err)
	req.JSONEq(`[2, "'text' should not be blank"]`, string(raw))

	var back Error
	req.NoError(json.Unmarshal(raw, &back))
	req.Equal(*werr, back)
}

func TestEncodeError_Frame(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeError(NewError(InvalidRandomID, "'random_id' should be negative"))

	req.NoError(err)
	req.JSONEq(`{"msg_type": 7, "error": [5, "'random_id' should be negative"]}`, string(raw))
}

func TestEncodeClose_Frame(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeClose(CloseUnauthenticated)

	req.NoError(err)
	req.JSONEq(`{"close_code": 4001}`, string(raw))
}

func TestEncodeEvent_TextMessage_Merges_Extras(t *testing.T) {
	req := require.New(t)
	evt := event.TextMessage{
		Extras: event.Extras{
			"url_preview": map[string]any{"title": "t"},
			// Extras never override fixed fields or leak routing state
			"text":                "spoofed",
			"sender_channel_name": "leak",
			"msg_type":            99,
		},
		RandomID:      -7,
		Text:          "hello",
		Sender:        "alice",
		Receiver:      "bob",
		SenderChannel: "chan-1",
	}

	raw, err := EncodeEvent(evt)
	req.NoError(err)

	var out map[string]any
	req.NoError(json.Unmarshal(raw, &out))
	req.Equal(float64(3), out["msg_type"])
	req.Equal(float64(-7), out["random_id"])
	req.Equal("hello", out["text"])
	req.Equal("alice", out["sender"])
	req.Equal("bob", out["receiver"])
	req.Equal(map[string]any{"title": "t"}, out["url_preview"])
	req.NotContains(out, "sender_channel_name")
}

func TestEncodeEvent_All_Outbound_Kinds(t *testing.T) {
	cases := []struct {
		name string
		evt  event.Event
		want string
	}{
		{
			"file message",
			event.FileMessage{DBID: "pid-1", File: map[string]any{"id": "f1"}, Sender: "alice", Receiver: "bob"},
			`{"msg_type": 4, "db_id": "pid-1", "file": {"id": "f1"}, "sender": "alice", "receiver": "bob"}`,
		},
		{
			"message id created",
			event.MessageIDCreated{RandomID: -7, DBID: "pid-1"},
			`{"msg_type": 8, "random_id": -7, "db_id": "pid-1"}`,
		},
		{
			"message read",
			event.MessageRead{MessageID: "pid-1", Sender: "alice", Receiver: "bob"},
			`{"msg_type": 6, "message_id": "pid-1", "sender": "alice", "receiver": "bob"}`,
		},
		{
			"new unread count",
			event.NewUnreadCount{Sender: "alice", Count: 3},
			`{"msg_type": 9, "sender": "alice", "unread_count": 3}`,
		},
		{
			"is typing",
			event.IsTyping{Username: "alice"},
			`{"msg_type": 5, "user_pk": "alice"}`,
		},
		{
			"typing stopped",
			event.TypingStopped{Username: "alice"},
			`{"msg_type": 10, "user_pk": "alice"}`,
		},
		{
			"went online",
			event.WentOnline{Username: "alice"},
			`{"msg_type": 1, "user_pk": "alice"}`,
		},
		{
			"went offline",
			event.WentOffline{Username: "alice"},
			`{"msg_type": 2, "user_pk": "alice"}`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := require.New(t)
			raw, err := EncodeEvent(c.evt)
			req.NoError(err)
			req.JSONEq(c.want, string(raw))
		})
	}
}
