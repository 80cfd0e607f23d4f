package proxy

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tinylib/msgp/msgp"

	"github.com/arloliu/switchyard/types"
)

// UUIDExtensionType is the MessagePack extension type for UUID params.
// Types 3, 4, 5 are used by msgp for complex64, complex128, and time.Time.
const UUIDExtensionType int8 = 10

func init() {
	msgp.RegisterExtension(UUIDExtensionType, func() msgp.Extension {
		return new(UUID)
	})
}

// UUID carries a uuid.UUID through MessagePack as a 16-byte extension.
type UUID uuid.UUID

// ExtensionType returns the MessagePack extension type for UUID.
func (u *UUID) ExtensionType() int8 { return UUIDExtensionType }

// Len returns the encoded length (always 16 bytes).
func (u *UUID) Len() int { return 16 }

// MarshalBinaryTo copies the UUID bytes into b.
func (u *UUID) MarshalBinaryTo(b []byte) error {
	copy(b, u[:])
	return nil
}

// UnmarshalBinary copies the UUID bytes from b.
func (u *UUID) UnmarshalBinary(b []byte) error {
	if len(b) != 16 {
		return fmt.Errorf("switchyard: uuid extension has %d bytes", len(b))
	}
	copy(u[:], b)

	return nil
}

// String returns the hyphenated form.
func (u *UUID) String() string {
	return uuid.UUID(*u).String()
}

// encodeRequest serializes req as a MessagePack map.
func encodeRequest(req Request) ([]byte, error) {
	params := make([]any, len(req.Params))
	for i, p := range req.Params {
		params[i] = toWire(p)
	}

	m := map[string]any{
		"host":     req.Host,
		"port":     int64(req.Port),
		"user":     req.User,
		"password": req.Password,
		"database": req.Database,
		"query":    req.Query,
		"params":   params,
	}

	return msgp.AppendIntf(nil, m)
}

// decodeRequest parses a MessagePack request produced by encodeRequest.
func decodeRequest(b []byte) (Request, error) {
	v, _, err := msgp.ReadIntfBytes(b)
	if err != nil {
		return Request{}, fmt.Errorf("switchyard: decode proxy request: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Request{}, errors.New("switchyard: proxy request is not a map")
	}

	req := Request{
		Target: Target{
			Host:     asString(m["host"]),
			Port:     int(asInt64(m["port"])),
			User:     asString(m["user"]),
			Password: asString(m["password"]),
			Database: asString(m["database"]),
		},
		Query: asString(m["query"]),
	}
	if params, ok := m["params"].([]any); ok {
		req.Params = make([]any, len(params))
		for i, p := range params {
			req.Params[i] = fromWire(p)
		}
	}

	return req, nil
}

// encodeResponse serializes resp as a MessagePack map.
func encodeResponse(resp *Response) ([]byte, error) {
	m := map[string]any{
		"affectedRows": resp.AffectedRows,
		"lastInsertId": resp.LastInsertID,
		"requestId":    resp.RequestID,
		"error":        resp.Error,
	}
	if resp.Data != nil {
		rows := make([]any, len(resp.Data))
		for i, rec := range resp.Data {
			row := make(map[string]any, len(rec))
			for k, v := range rec {
				row[k] = toWire(v)
			}
			rows[i] = row
		}
		m["data"] = rows
	}

	return msgp.AppendIntf(nil, m)
}

// decodeMsgpResponse parses a MessagePack response produced by encodeResponse.
func decodeMsgpResponse(b []byte) (*Response, error) {
	v, _, err := msgp.ReadIntfBytes(b)
	if err != nil {
		return nil, fmt.Errorf("switchyard: decode proxy response: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("switchyard: proxy response is not a map")
	}

	resp := &Response{
		AffectedRows: asInt64(m["affectedRows"]),
		LastInsertID: asInt64(m["lastInsertId"]),
		RequestID:    asString(m["requestId"]),
		Error:        asString(m["error"]),
	}
	if rows, ok := m["data"].([]any); ok {
		resp.Data = make([]types.Record, 0, len(rows))
		for _, r := range rows {
			row, ok := r.(map[string]any)
			if !ok {
				return nil, errors.New("switchyard: proxy response row is not a map")
			}
			rec := make(types.Record, len(row))
			for k, v := range row {
				rec[k] = fromWire(v)
			}
			resp.Data = append(resp.Data, rec)
		}
	}

	return resp, nil
}

// toWire converts values msgp cannot encode natively.
func toWire(v any) any {
	switch val := v.(type) {
	case uuid.UUID:
		u := UUID(val)
		return &u
	case [16]byte:
		u := UUID(val)
		return &u
	case int:
		return int64(val)
	case types.Record:
		return map[string]any(val)
	case time.Time:
		return val.UTC()
	default:
		return v
	}
}

// fromWire converts decoded values to what database drivers accept.
func fromWire(v any) any {
	switch val := v.(type) {
	case *UUID:
		return val.String()
	case []byte:
		return string(val)
	default:
		return v
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n) //nolint:gosec // counters never exceed int64
	case float64:
		return int64(n)
	default:
		return 0
	}
}
