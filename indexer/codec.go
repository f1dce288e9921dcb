package indexer

import (
	"encoding/json"
	"fmt"
)

// The cursor type is serialized with a single canonical encoding wherever
// it appears: the cursor store value, live-task list elements, shadow-key
// suffixes, and retry-queue entries. Using one encoder everywhere is what
// lets Cleanup match shadow keys back to list entries byte for byte.

func (ix *Indexer[T]) encode(v T) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor for '%s': %w", ix.name, err)
	}
	return string(raw), nil
}

func (ix *Indexer[T]) decode(raw string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("failed to decode cursor for '%s': %w", ix.name, err)
	}
	return v, nil
}
