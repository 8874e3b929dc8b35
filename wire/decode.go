package wire

import (
	"github.com/valyala/fastjson"
)

// Frame is a decoded inbound envelope. Fields stay inside the fastjson
// value and are probed lazily by the validator; the value is only valid
// until the owning parser is reused, so a Frame must not outlive the
// handling of the frame it came from.
type Frame struct {
	Type MessageType
	body *fastjson.Value
}

// Decode parses one inbound envelope. The caller owns the parser; one
// parser per connection keeps decoding allocation-free on the hot path.
// Any malformed envelope yields a MessageParsingError, never a Go error.
func Decode(p *fastjson.Parser, data []byte) (*Frame, *Error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, NewError(MessageParsingError, "jsonDecodeError - %v", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, NewError(MessageParsingError, "frame is not a json object")
	}
	t := v.Get("msg_type")
	if t == nil {
		return nil, NewError(MessageParsingError, "msg_type not present in json")
	}
	if t.Type() != fastjson.TypeNumber {
		return nil, NewError(MessageParsingError, "msg_type is not an int")
	}
	n, err := t.Int()
	if err != nil {
		return nil, NewError(MessageParsingError, "msg_type is not an int")
	}
	mt := MessageType(n)
	if !mt.Valid() {
		return nil, NewError(MessageParsingError, "msg_type decoding error - unknown value %d", n)
	}
	return &Frame{Type: mt, body: v}, nil
}

// StringField returns the field value, whether the field is present,
// and whether it is a string. Absent fields report ok=false.
func (f *Frame) StringField(key string) (val string, present, ok bool) {
	v := f.body.Get(key)
	if v == nil {
		return "", false, false
	}
	if v.Type() != fastjson.TypeString {
		return "", true, false
	}
	b, _ := v.StringBytes()
	return string(b), true, true
}

// IntField returns the field value, whether the field is present, and
// whether it is an integer. JSON numbers with a fractional part report
// ok=false.
func (f *Frame) IntField(key string) (val int64, present, ok bool) {
	v := f.body.Get(key)
	if v == nil {
		return 0, false, false
	}
	if v.Type() != fastjson.TypeNumber {
		return 0, true, false
	}
	n, err := v.Int64()
	if err != nil {
		return 0, true, false
	}
	return n, true, true
}

// MetadataFields extracts every field whose key satisfies keep,
// decoded to plain Go values. Used for preview metadata pass-through
// on text messages.
func (f *Frame) MetadataFields(keep func(key string) bool) map[string]any {
	var extra map[string]any
	obj, err := f.body.Object()
	if err != nil {
		return nil
	}
	obj.Visit(func(key []byte, v *fastjson.Value) {
		k := string(key)
		if !keep(k) {
			return
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = plainValue(v)
	})
	return extra
}

// Payload decodes the whole frame body into plain Go values. Used for
// opaque payloads delegated to collaborator hooks.
func (f *Frame) Payload() map[string]any {
	obj, err := f.body.Object()
	if err != nil {
		return nil
	}
	out := make(map[string]any, obj.Len())
	obj.Visit(func(key []byte, v *fastjson.Value) {
		out[string(key)] = plainValue(v)
	})
	return out
}

func plainValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, 0, len(arr))
		for _, item := range arr {
			out = append(out, plainValue(item))
		}
		return out
	case fastjson.TypeObject:
		obj, _ := v.Object()
		out := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, item *fastjson.Value) {
			out[string(key)] = plainValue(item)
		})
		return out
	}
	return nil
}
