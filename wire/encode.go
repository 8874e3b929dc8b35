package wire

import (
	"encoding/json"

	"privchat/domain/event"
)

// EncodeEvent translates a bus event into its outbound frame. Extra
// metadata carried by the event is merged in verbatim, except keys that
// would collide with the frame's own fields and the internal routing
// field sender_channel_name, which never reaches the wire.
func EncodeEvent(evt event.Event) ([]byte, error) {
	switch e := evt.(type) {
	case event.TextMessage:
		return frame(TextMessage, e.ExtraFields(), map[string]any{
			"random_id": e.RandomID,
			"text":      e.Text,
			"sender":    e.Sender,
			"receiver":  e.Receiver,
		})
	case event.FileMessage:
		return frame(FileMessage, e.ExtraFields(), map[string]any{
			"db_id":    e.DBID,
			"file":     e.File,
			"sender":   e.Sender,
			"receiver": e.Receiver,
		})
	case event.MessageIDCreated:
		return frame(MessageIDCreated, e.ExtraFields(), map[string]any{
			"random_id": e.RandomID,
			"db_id":     e.DBID,
		})
	case event.MessageRead:
		return frame(MessageRead, e.ExtraFields(), map[string]any{
			"message_id": e.MessageID,
			"sender":     e.Sender,
			"receiver":   e.Receiver,
		})
	case event.NewUnreadCount:
		return frame(NewUnreadCount, e.ExtraFields(), map[string]any{
			"sender":       e.Sender,
			"unread_count": e.Count,
		})
	case event.IsTyping:
		return frame(IsTyping, e.ExtraFields(), map[string]any{
			"user_pk": e.Username,
		})
	case event.TypingStopped:
		return frame(TypingStopped, e.ExtraFields(), map[string]any{
			"user_pk": e.Username,
		})
	case event.WentOnline:
		return frame(WentOnline, e.ExtraFields(), map[string]any{
			"user_pk": e.Username,
		})
	case event.WentOffline:
		return frame(WentOffline, e.ExtraFields(), map[string]any{
			"user_pk": e.Username,
		})
	}
	return nil, nil
}

// EncodeError builds the error frame sent only to the originating
// connection.
func EncodeError(werr *Error) ([]byte, error) {
	return json.Marshal(map[string]any{
		"msg_type": int(ErrorOccurred),
		"error":    werr,
	})
}

// EncodeClose builds the control frame carrying a close code, emitted
// as the last frame before the transport shuts the connection.
func EncodeClose(code int) ([]byte, error) {
	return json.Marshal(map[string]any{"close_code": code})
}

func frame(t MessageType, extras event.Extras, fields map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extras)+len(fields)+1)
	for k, v := range extras {
		if k == "msg_type" || k == "sender_channel_name" {
			continue
		}
		if _, taken := fields[k]; taken {
			continue
		}
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	out["msg_type"] = int(t)
	return json.Marshal(out)
}
