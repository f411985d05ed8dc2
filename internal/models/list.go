package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the paginated list envelope some endpoints return.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// DecodeList decodes a list response that is either a bare JSON array or a
// paginated {"results": [...]} envelope. Anything else yields an empty list.
func DecodeList[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		return items, nil
	case '{':
		var page Page[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to decode paginated list: %w", err)
		}
		if page.Results == nil {
			return []T{}, nil
		}
		return page.Results, nil
	}
	return []T{}, nil
}
