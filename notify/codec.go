package notify

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/arloliu/switchyard/types"
)

// message is the MessagePack form of a notification on the stream.
type message types.Notification

// MarshalMsg appends the MessagePack encoding of m to b.
func (m *message) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, m.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "id")
	o = msgp.AppendString(o, m.ID)
	o = msgp.AppendString(o, "message")
	o = msgp.AppendString(o, m.Message)
	o = msgp.AppendString(o, "level")
	o = msgp.AppendString(o, string(m.Level))
	o = msgp.AppendString(o, "ts")
	o = msgp.AppendInt64(o, m.Timestamp)

	return o, nil
}

// UnmarshalMsg decodes m from bts and returns the remaining bytes.
// Unknown fields are skipped.
func (m *message) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, msgp.WrapError(err)
	}

	for range n {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, msgp.WrapError(err)
		}

		switch msgp.UnsafeString(field) {
		case "id":
			m.ID, bts, err = msgp.ReadStringBytes(bts)
		case "message":
			m.Message, bts, err = msgp.ReadStringBytes(bts)
		case "level":
			var lvl string
			lvl, bts, err = msgp.ReadStringBytes(bts)
			m.Level = types.Level(lvl)
		case "ts":
			m.Timestamp, bts, err = msgp.ReadInt64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, msgp.WrapError(err, string(field))
		}
	}

	return bts, nil
}

// Msgsize returns an upper bound of the encoded size.
func (m *message) Msgsize() int {
	return 1 +
		3 + msgp.StringPrefixSize + len(m.ID) +
		8 + msgp.StringPrefixSize + len(m.Message) +
		6 + msgp.StringPrefixSize + len(m.Level) +
		3 + msgp.Int64Size
}

// Encode serializes n as MessagePack.
func Encode(n types.Notification) ([]byte, error) {
	m := message(n)
	return m.MarshalMsg(nil)
}

// Decode parses a notification produced by Encode.
func Decode(b []byte) (types.Notification, error) {
	var m message
	if _, err := m.UnmarshalMsg(b); err != nil {
		return types.Notification{}, err
	}

	return types.Notification(m), nil
}
