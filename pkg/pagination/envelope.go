package pagination

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrNotObject is returned when a response body is not a JSON object.
var ErrNotObject = errors.New("response body is not a JSON object")

// Meta is the server's pagination metadata.
type Meta struct {
	Total       int `json:"total" yaml:"total"`
	PerPage     int `json:"per_page" yaml:"per_page"`
	CurrentPage int `json:"current_page" yaml:"current_page"`
	LastPage    int `json:"last_page" yaml:"last_page"`
	From        int `json:"from" yaml:"from"`
	To          int `json:"to" yaml:"to"`
}

// Known reports whether the server sent usable metadata.
func (m Meta) Known() bool {
	return m.LastPage > 0
}

// HasNext reports whether a page after CurrentPage exists.
func (m Meta) HasNext() bool {
	return m.CurrentPage < m.LastPage
}

// HasPrev reports whether a page before CurrentPage exists.
func (m Meta) HasPrev() bool {
	return m.CurrentPage > 1
}

// Result is one decoded page. Treat it as immutable once produced.
type Result[T any] struct {
	Items []T  `json:"items" yaml:"items"`
	Meta  Meta `json:"meta" yaml:"meta"`
}

// Empty returns a result with no items and zero metadata.
func Empty[T any]() Result[T] {
	return Result[T]{Items: []T{}}
}

// Decode extracts data.data and data.pagination from a list envelope.
// Shape mismatches below the top level yield empty defaults.
func Decode[T any](body []byte) (Result[T], error) {
	root, err := object(body)
	if err != nil {
		return Empty[T](), err
	}

	result := Empty[T]()

	data, err := object(root["data"])
	if err != nil {
		log.Debug().Err(err).Msg("List envelope without data object - using empty page")
		return result, nil
	}

	if raw, ok := present(data["data"]); ok {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			log.Debug().Err(err).Msg("List items have unexpected shape - using empty list")
		} else if items != nil {
			result.Items = items
		}
	}

	if raw, ok := present(data["pagination"]); ok {
		var meta Meta
		if err := json.Unmarshal(raw, &meta); err != nil {
			log.Debug().Err(err).Msg("Pagination has unexpected shape - using empty meta")
		} else {
			result.Meta = meta
		}
	}

	return result, nil
}

// DecodeItem extracts a single resource from {"data": {...}}. A bare object
// without a data member is decoded as the resource itself.
func DecodeItem[T any](body []byte) (T, error) {
	var item T

	root, err := object(body)
	if err != nil {
		return item, err
	}

	raw := json.RawMessage(body)
	if inner, ok := present(root["data"]); ok {
		if _, err := object(inner); err == nil {
			raw = inner
		}
	}

	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("decode item: %w", err)
	}
	return item, nil
}

// DecodeList extracts a raw list from either a bare JSON array or
// {"data": [...]}. Mismatched shapes yield an empty slice.
func DecodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			log.Debug().Err(err).Msg("List has unexpected shape - using empty list")
			return []T{}, nil
		}
		return items, nil
	}

	root, err := object(body)
	if err != nil {
		return []T{}, err
	}

	raw, ok := present(root["data"])
	if !ok {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return []T{}, nil
	}
	return items, nil
}

func object(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	return m, nil
}

func present(raw json.RawMessage) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	return trimmed, true
}
