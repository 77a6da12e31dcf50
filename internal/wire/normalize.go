package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrEmptyReason stands in for a failure that carried no reason.
	ErrEmptyReason = errors.New("remote call failed without a reason")

	// ErrMissingID is returned when an upsert answer carries no id.
	ErrMissingID = errors.New("response carries no id")

	// ErrMalformed is returned when a response body cannot be interpreted.
	ErrMalformed = errors.New("malformed response body")
)

// StatusError is a response the server marked as failed, either through the
// HTTP status or through a {"success": false} body.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// maxMessageLen bounds the body excerpt kept in a StatusError.
const maxMessageLen = 200

// NormalizeUpsert interprets an upsert response. Accepted shapes:
//
//	{"id": "..."}            {"id": 42}
//	{"data": {"id": "..."}}
//	{"success": false, "error": "..."}
//
// Non-2xx statuses become a *StatusError regardless of body shape.
func NormalizeUpsert(status int, body []byte) Result[UpsertAck] {
	if status < 200 || status > 299 {
		return Err[UpsertAck](&StatusError{StatusCode: status, Message: failureMessage(body)})
	}

	fields, err := decodeObject(body)
	if err != nil {
		return Err[UpsertAck](err)
	}

	if rejected, msg := rejection(fields); rejected {
		return Err[UpsertAck](&StatusError{StatusCode: http.StatusUnprocessableEntity, Message: msg})
	}

	if id, ok := idFrom(fields["id"]); ok {
		return Ok(UpsertAck{ID: id})
	}
	if raw, ok := fields["data"]; ok {
		inner, err := decodeObject(raw)
		if err == nil {
			if id, ok := idFrom(inner["id"]); ok {
				return Ok(UpsertAck{ID: id})
			}
		}
	}
	return Err[UpsertAck](ErrMissingID)
}

// NormalizeList interprets a list response. Accepted shapes are a bare array,
// {"items": [...]} and {"data": [...]}.
func NormalizeList[T any](status int, body []byte) Result[[]T] {
	if status < 200 || status > 299 {
		return Err[[]T](&StatusError{StatusCode: status, Message: failureMessage(body)})
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Ok([]T{})
	}

	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Err[[]T](fmt.Errorf("%w: %v", ErrMalformed, err))
		}
		return Ok(nonNil(items))
	}

	fields, err := decodeObject(trimmed)
	if err != nil {
		return Err[[]T](err)
	}
	if rejected, msg := rejection(fields); rejected {
		return Err[[]T](&StatusError{StatusCode: http.StatusUnprocessableEntity, Message: msg})
	}
	for _, key := range []string{"items", "data"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return Err[[]T](fmt.Errorf("%w: %s: %v", ErrMalformed, key, err))
		}
		return Ok(nonNil(items))
	}
	return Err[[]T](fmt.Errorf("%w: no items", ErrMalformed))
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: null body", ErrMalformed)
	}
	return fields, nil
}

func rejection(fields map[string]json.RawMessage) (bool, string) {
	raw, ok := fields["success"]
	if !ok {
		return false, ""
	}
	var success bool
	if err := json.Unmarshal(raw, &success); err != nil || success {
		return false, ""
	}
	return true, messageFrom(fields)
}

func idFrom(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String(), true
		}
	}
	return "", false
}

func messageFrom(fields map[string]json.RawMessage) string {
	for _, key := range []string{"error", "message"} {
		var s string
		if err := json.Unmarshal(fields[key], &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func failureMessage(body []byte) string {
	if fields, err := decodeObject(body); err == nil {
		if msg := messageFrom(fields); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	return msg
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
