// Package pagination normalizes page sizes and keyset page tokens.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// Cursor is a keyset position: the sort key and id of the last row served.
type Cursor struct {
	SortKey int64
	ID      string
}

// EncodeCursor renders c as an opaque page token.
func EncodeCursor(c Cursor) string {
	raw := strconv.FormatInt(c.SortKey, 10) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid page token")
	}
	sortKey, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return Cursor{}, fmt.Errorf("invalid page token")
	}
	value, err := strconv.ParseInt(sortKey, 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid page token")
	}
	return Cursor{SortKey: value, ID: id}, nil
}
