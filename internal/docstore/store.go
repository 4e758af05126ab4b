// Package docstore is a small JSON document database abstraction addressed by
// {collection, id} pairs. Each backend guarantees per-document atomicity only.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("docstore: document not found")
	ErrExists          = errors.New("docstore: document already exists")
	ErrInvalidKey      = errors.New("docstore: invalid key")
	ErrInvalidDocument = errors.New("docstore: document must be a JSON object")
)

// Key addresses a single document.
type Key struct {
	Collection string
	ID         string
}

func (k Key) String() string { return k.Collection + "/" + k.ID }

func (k Key) validate() error {
	if strings.TrimSpace(k.Collection) == "" || strings.TrimSpace(k.ID) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, k.String())
	}
	return nil
}

// Document is a stored JSON object together with its key.
type Document struct {
	Key  Key
	Data json.RawMessage
}

// Store is implemented by every backend.
type Store interface {
	// Get returns the raw JSON object stored at key or ErrNotFound.
	Get(ctx context.Context, key Key) (json.RawMessage, error)
	// Set overwrites the document at key.
	Set(ctx context.Context, key Key, doc json.RawMessage) error
	// Create stores doc only if key is free, otherwise ErrExists.
	Create(ctx context.Context, key Key, doc json.RawMessage) error
	// Update merges top-level fields into an existing document, otherwise ErrNotFound.
	Update(ctx context.Context, key Key, fields map[string]any) error
	// Delete removes the document at key, otherwise ErrNotFound.
	Delete(ctx context.Context, key Key) error
	// List returns every document of a collection ordered by id.
	List(ctx context.Context, collection string) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON loads the document at key into v.
func GetJSON(ctx context.Context, s Store, key Key, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and overwrites the document at key.
func SetJSON(ctx context.Context, s Store, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// CreateJSON encodes v and creates the document at key.
func CreateJSON(ctx context.Context, s Store, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("docstore: encode %s: %w", key, err)
	}
	return s.Create(ctx, key, raw)
}

func checkObject(doc json.RawMessage) error {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidDocument
	}
	return nil
}

// mergeFields overlays fields on the top level of an existing JSON object.
func mergeFields(existing json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(existing, &obj); err != nil {
		return nil, fmt.Errorf("docstore: decode existing document: %w", err)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("docstore: encode field %q: %w", k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

func encodeFields(fields map[string]any) (json.RawMessage, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode fields: %w", err)
	}
	return raw, nil
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key.ID < docs[j].Key.ID })
}

func cloneRaw(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
