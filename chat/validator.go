// Package chat is the per-connection protocol core: inbound frame
// validation, message-kind dispatch, group membership, ordering of
// broadcast versus persistence, read-receipt reconciliation and
// unread-count propagation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"privchat/contract"
	"privchat/domain"
	priverr "privchat/errors"
	"privchat/wire"
)

// Intent is a validated inbound frame, one variant per message kind.
// Construction goes through Validator.Validate only.
type Intent interface{ isIntent() }

// TypingIntent covers IsTyping and TypingStopped. A nil Target means
// the signal fans out to every dialog partner of the sender.
type TypingIntent struct {
	Stopped bool
	Target  *domain.User
}

// ReadIntent marks a message from Target to the session user as read.
type ReadIntent struct {
	Target    *domain.User
	MessageID string
}

// TextIntent sends a text message. Preview carries link-preview
// metadata forwarded verbatim into the delivery event.
type TextIntent struct {
	Target   *domain.User
	Text     string
	RandomID int64
	Preview  map[string]any
}

// FileIntent sends a file message. The file row is resolved during
// validation so no broadcast can happen for a missing file.
type FileIntent struct {
	Target   *domain.User
	File     *domain.UploadedFile
	RandomID int64
}

// HeartbeatIntent delegates its opaque payload to the embedding
// application's hook.
type HeartbeatIntent struct {
	Payload map[string]any
}

// IgnoredIntent is an outbound-only kind received as if it were
// inbound; it is logged and dropped.
type IgnoredIntent struct {
	Type wire.MessageType
}

func (TypingIntent) isIntent()    {}
func (ReadIntent) isIntent()      {}
func (TextIntent) isIntent()      {}
func (FileIntent) isIntent()      {}
func (HeartbeatIntent) isIntent() {}
func (IgnoredIntent) isIntent()   {}

// Validator maps a decoded frame plus the session identity to a
// validated intent or a structured error. It performs store lookups
// but no writes and no publishes.
type Validator struct {
	log           *slog.Logger
	store         contract.Store
	maxTextLength int
}

func NewValidator(log *slog.Logger, store contract.Store, maxTextLength int) *Validator {
	return &Validator{log: log, store: store, maxTextLength: maxTextLength}
}

// Validate checks the frame against the per-kind contract. The wire
// error is client-correctable and non-fatal; the plain error is a
// store fault and propagates as a connection-level failure.
func (v *Validator) Validate(ctx context.Context, self *domain.User, f *wire.Frame) (Intent, *wire.Error, error) {
	switch f.Type {
	case wire.WentOnline, wire.WentOffline, wire.MessageIDCreated, wire.ErrorOccurred, wire.NewUnreadCount:
		return IgnoredIntent{Type: f.Type}, nil, nil
	case wire.IsTyping:
		return v.validateTyping(ctx, f, false)
	case wire.TypingStopped:
		return v.validateTyping(ctx, f, true)
	case wire.MessageRead:
		return v.validateRead(ctx, self, f)
	case wire.TextMessage:
		return v.validateText(ctx, f)
	case wire.FileMessage:
		return v.validateFile(ctx, f)
	case wire.Heartbeat:
		return HeartbeatIntent{Payload: f.Payload()}, nil, nil
	}
	return nil, wire.NewError(wire.MessageParsingError, "msg_type decoding error - unknown value %d", f.Type), nil
}

func (v *Validator) validateTyping(ctx context.Context, f *wire.Frame, stopped bool) (Intent, *wire.Error, error) {
	username, present, ok := f.StringField("user_pk")
	if !present {
		return TypingIntent{Stopped: stopped}, nil, nil
	}
	if !ok {
		return nil, wire.NewError(wire.MessageParsingError, "'user_pk' should be a string"), nil
	}
	target, werr, err := v.resolveUser(ctx, username)
	if werr != nil || err != nil {
		return nil, werr, err
	}
	return TypingIntent{Stopped: stopped, Target: target}, nil, nil
}

func (v *Validator) validateRead(ctx context.Context, self *domain.User, f *wire.Frame) (Intent, *wire.Error, error) {
	username, present, usernameOK := f.StringField("user_pk")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'user_pk' not present in data"), nil
	}
	mid, present, midOK := f.StringField("message_id")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'message_id' not present in data"), nil
	}
	if !usernameOK {
		return nil, wire.NewError(wire.InvalidUserPK, "'user_pk' should be a string"), nil
	}
	if !midOK {
		return nil, wire.NewError(wire.MessageParsingError, "'message_id' should be a string"), nil
	}
	if username == self.Username {
		return nil, wire.NewError(wire.InvalidUserPK, "'user_pk' can't be self (you can't mark self messages as read)"), nil
	}
	target, werr, err := v.resolveUser(ctx, username)
	if werr != nil || err != nil {
		return nil, werr, err
	}
	return ReadIntent{Target: target, MessageID: mid}, nil, nil
}

func (v *Validator) validateText(ctx context.Context, f *wire.Frame) (Intent, *wire.Error, error) {
	text, present, textOK := f.StringField("text")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'text' not present in data"), nil
	}
	username, present, usernameOK := f.StringField("user_pk")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'user_pk' not present in data"), nil
	}
	rid, present, ridOK := f.IntField("random_id")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'random_id' not present in data"), nil
	}
	if !textOK {
		return nil, wire.NewError(wire.TextMessageInvalid, "'text' should be a string"), nil
	}
	if text == "" {
		return nil, wire.NewError(wire.TextMessageInvalid, "'text' should not be blank"), nil
	}
	if utf8.RuneCountInString(text) > v.maxTextLength {
		return nil, wire.NewError(wire.TextMessageInvalid, "'text' is too long"), nil
	}
	if !usernameOK {
		return nil, wire.NewError(wire.InvalidUserPK, "'user_pk' should be a string"), nil
	}
	if werr := validRandomID(rid, ridOK); werr != nil {
		return nil, werr, nil
	}
	target, werr, err := v.resolveUser(ctx, username)
	if werr != nil || err != nil {
		return nil, werr, err
	}
	preview := f.MetadataFields(func(key string) bool {
		return strings.Contains(key, "preview")
	})
	return TextIntent{Target: target, Text: text, RandomID: rid, Preview: preview}, nil, nil
}

func (v *Validator) validateFile(ctx context.Context, f *wire.Frame) (Intent, *wire.Error, error) {
	fileID, present, fileOK := f.StringField("file_id")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'file_id' not present in data"), nil
	}
	username, present, usernameOK := f.StringField("user_pk")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'user_pk' not present in data"), nil
	}
	rid, present, ridOK := f.IntField("random_id")
	if !present {
		return nil, wire.NewError(wire.MessageParsingError, "'random_id' not present in data"), nil
	}
	if !fileOK {
		return nil, wire.NewError(wire.FileMessageInvalid, "'file_id' should be a string"), nil
	}
	if fileID == "" {
		return nil, wire.NewError(wire.FileMessageInvalid, "'file_id' should not be blank"), nil
	}
	if !usernameOK {
		return nil, wire.NewError(wire.InvalidUserPK, "'user_pk' should be a string"), nil
	}
	if werr := validRandomID(rid, ridOK); werr != nil {
		return nil, werr, nil
	}

	// The client cannot render a file message optimistically, so the file
	// row is resolved up front; a missing file fails before any broadcast.
	file, err := v.store.FindFile(ctx, fileID)
	if errors.Is(err, priverr.ErrNotFound) {
		return nil, wire.NewError(wire.FileDoesNotExist, "File with id %s does not exist", fileID), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("looking up file %s: %w", fileID, err)
	}
	v.log.Debug(fmt.Sprintf("DB check confirmed file %s exists", fileID))

	target, werr, err := v.resolveUser(ctx, username)
	if werr != nil || err != nil {
		return nil, werr, err
	}
	return FileIntent{Target: target, File: file, RandomID: rid}, nil, nil
}

func validRandomID(rid int64, isInt bool) *wire.Error {
	if !isInt {
		return wire.NewError(wire.InvalidRandomID, "'random_id' should be an int")
	}
	if rid >= 0 {
		return wire.NewError(wire.InvalidRandomID, "'random_id' should be negative")
	}
	return nil
}

func (v *Validator) resolveUser(ctx context.Context, username string) (*domain.User, *wire.Error, error) {
	user, err := v.store.FindUserByName(ctx, username)
	if errors.Is(err, priverr.ErrNotFound) {
		return nil, wire.NewError(wire.InvalidUserPK, "User with username %s does not exist", username), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("looking up user %s: %w", username, err)
	}
	v.log.Debug(fmt.Sprintf("DB check confirmed user %s exists", username))
	return user, nil, nil
}
