// Package id holds the identifier types shared by the domain: time-ordered
// UUIDs for documents and int64 serials for catalog entries.
package id

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ID identifies orders, items, lots and movements.
type ID = uuid.UUID

// ErrNilID is returned when a parsed identifier is the zero UUID.
var ErrNilID = errors.New("nil id")

// New generates a UUIDv7, so ids sort by creation time.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse reads a document id. Surrounding spaces are ignored and the zero
// UUID is rejected.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, err
	}
	if v == uuid.Nil {
		return uuid.Nil, ErrNilID
	}
	return v, nil
}

// Nil returns the zero ID.
func Nil() ID {
	return uuid.Nil
}

// IsNil reports whether v is the zero ID.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

// ParseSerial reads a catalog serial such as a product or supplier id.
func ParseSerial(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// SerialFromJSON accepts a serial written as a JSON number or as a
// numeric string: 7, "7" and " 7 " all give 7.
func SerialFromJSON(data []byte) (int64, error) {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return ParseSerial(s)
	}
	return ParseSerial(string(data))
}
