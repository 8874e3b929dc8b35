package wire

import (
	"encoding/json"
	"fmt"
)

// ErrorKind classifies client-correctable failures. Values are part of
// the client contract.
type ErrorKind int

const (
	MessageParsingError  ErrorKind = 1
	TextMessageInvalid   ErrorKind = 2
	InvalidMessageReadID ErrorKind = 3
	InvalidUserPK        ErrorKind = 4
	InvalidRandomID      ErrorKind = 5
	FileMessageInvalid   ErrorKind = 6
	FileDoesNotExist     ErrorKind = 7
)

// Error is the structured error reported back to the offending
// connection. It serializes as the two-element tuple [kind, message].
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("wire error %d: %s", e.Kind, e.Message)
}

func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{int(e.Kind), e.Message})
}

func (e *Error) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	var kind int
	if err := json.Unmarshal(tuple[0], &kind); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &e.Message); err != nil {
		return err
	}
	e.Kind = ErrorKind(kind)
	return nil
}
