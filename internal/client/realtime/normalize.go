package realtime

import (
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/sharetube/watchparty/internal/domain"
)

// snakeCase converts memberName to member_name. Snake case input is
// returned unchanged.
func snakeCase(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// normalizeRow rewrites the top level keys of a row to snake case. When
// both spellings are present the snake case one wins.
func normalizeRow(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var row map[string]json.RawMessage
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(row))
	for key, value := range row {
		snake := snakeCase(key)
		if _, ok := out[snake]; ok && snake != key {
			continue
		}
		out[snake] = value
	}

	return out, nil
}

func decodeRow[T any](raw json.RawMessage) (T, error) {
	var v T
	row, err := normalizeRow(raw)
	if err != nil {
		return v, err
	}

	data, err := json.Marshal(row)
	if err != nil {
		return v, err
	}

	err = json.Unmarshal(data, &v)
	return v, err
}

func decodeMember(raw json.RawMessage) (domain.Member, error) {
	return decodeRow[domain.Member](raw)
}

func decodeSyncEvent(raw json.RawMessage) (domain.SyncEvent, error) {
	return decodeRow[domain.SyncEvent](raw)
}

// mergeRoom overlays the fields present in raw onto room.
func mergeRoom(room domain.Room, raw json.RawMessage) (domain.Room, error) {
	patch, err := normalizeRow(raw)
	if err != nil {
		return room, err
	}

	current, err := json.Marshal(room)
	if err != nil {
		return room, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(current, &merged); err != nil {
		return room, err
	}
	for key, value := range patch {
		merged[key] = value
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return room, err
	}

	var out domain.Room
	if err := json.Unmarshal(data, &out); err != nil {
		return room, err
	}

	return out, nil
}
