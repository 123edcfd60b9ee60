// Package store defines the synchronized document store the game state
// machine reads from and writes to. Documents are JSON objects addressed
// by id; writers submit partial field-level updates and every subscriber
// receives the full document after each change.
//
// There is deliberately no compare-and-swap: concurrent writers race and
// the merge rules below make the races converge. In particular Union is
// append-if-absent, so two observers appending the same called number
// collapse to a single entry.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Store is the document store contract shared by all backends.
type Store interface {
	// Create inserts a new document. ErrExists if the id is taken.
	Create(ctx context.Context, id string, doc any) (Snapshot, error)

	// Get returns the current snapshot of a document.
	Get(ctx context.Context, id string) (Snapshot, error)

	// Apply merges a partial update into a document and returns the
	// resulting snapshot.
	Apply(ctx context.Context, id string, update Update) (Snapshot, error)

	// Subscribe delivers the current snapshot immediately and a new one
	// after every change until ctx is cancelled or the cancel func is
	// called. Slow subscribers observe the latest state, not every
	// intermediate revision.
	Subscribe(ctx context.Context, id string) (<-chan Snapshot, func(), error)

	// List returns the ids of all documents, in no particular order.
	List(ctx context.Context) ([]string, error)
}

var (
	// ErrNotFound indicates no document exists for the id.
	ErrNotFound = errors.New("store: document not found")

	// ErrExists indicates Create collided with an existing document.
	ErrExists = errors.New("store: document already exists")
)

// OpKind is the merge behaviour of a single field operation.
type OpKind int

const (
	// OpSet replaces the value at the path, creating parents as needed.
	OpSet OpKind = iota

	// OpDelete removes the field at the path.
	OpDelete

	// OpUnion appends numbers to the array at the path, skipping any
	// already present. Order of first appearance is preserved.
	OpUnion
)

// Op is one field-level operation against a document. Paths are
// dot-separated JSON keys, e.g. "players.abc123.ready".
type Op struct {
	Kind    OpKind
	Path    string
	Value   any   // OpSet only
	Numbers []int // OpUnion only
}

// Update is an ordered batch of operations applied atomically to one
// document.
type Update []Op

// Set returns an op replacing the value at path.
func Set(path string, value any) Op {
	return Op{Kind: OpSet, Path: path, Value: value}
}

// Delete returns an op removing the field at path.
func Delete(path string) Op {
	return Op{Kind: OpDelete, Path: path}
}

// Union returns an append-if-absent op for a numeric array at path.
func Union(path string, numbers ...int) Op {
	return Op{Kind: OpUnion, Path: path, Numbers: numbers}
}

// Snapshot is a full document at a point in time. Revision increases
// monotonically with every applied update.
type Snapshot struct {
	ID       string
	Revision int64
	Data     []byte // JSON document body
}

// Decode unmarshals the snapshot body into v.
func (s Snapshot) Decode(v any) error {
	return json.Unmarshal(s.Data, v)
}

// applyUpdate merges an update into a decoded document body. Shared by
// every backend so merge semantics never diverge.
func applyUpdate(doc map[string]any, update Update) error {
	for _, op := range update {
		if err := applyOp(doc, op); err != nil {
			return err
		}
	}
	return nil
}

func applyOp(doc map[string]any, op Op) error {
	keys := strings.Split(op.Path, ".")
	if len(keys) == 0 || keys[0] == "" {
		return fmt.Errorf("store: empty path")
	}
	leaf := keys[len(keys)-1]

	parent := doc
	for _, key := range keys[:len(keys)-1] {
		child, ok := parent[key].(map[string]any)
		if !ok {
			if op.Kind == OpDelete {
				return nil // nothing to delete
			}
			child = make(map[string]any)
			parent[key] = child
		}
		parent = child
	}

	switch op.Kind {
	case OpSet:
		normalized, err := normalize(op.Value)
		if err != nil {
			return fmt.Errorf("store: set %s: %w", op.Path, err)
		}
		parent[leaf] = normalized

	case OpDelete:
		delete(parent, leaf)

	case OpUnion:
		existing, _ := parent[leaf].([]any)
		present := make(map[int]bool, len(existing))
		for _, v := range existing {
			if f, ok := v.(float64); ok {
				present[int(f)] = true
			}
		}
		for _, n := range op.Numbers {
			if !present[n] {
				existing = append(existing, float64(n))
				present[n] = true
			}
		}
		parent[leaf] = existing

	default:
		return fmt.Errorf("store: unknown op kind %d", op.Kind)
	}
	return nil
}

// normalize round-trips a value through JSON so documents hold only
// plain JSON types (map[string]any, []any, float64, string, bool, nil)
// regardless of what writers pass in.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
