package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// LocalStore is the durable key-value mirror of session fragments.
// A missing key is reported with ok == false, not an error.
type LocalStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

const (
	KeyUser      = "quizUser"
	KeySheetID   = "quizSheetId"
	KeySheetName = "quizSheetName"
)

// ResponseKey is the local key for the answer recorded at (sheetID, row).
func ResponseKey(sheetID string, row int) string {
	return fmt.Sprintf("quiz_response_%s_%d", sheetID, row)
}

// Scoped prefixes every key, giving each chat its own view of a shared store.
func Scoped(store LocalStore, prefix string) LocalStore {
	if prefix == "" {
		return store
	}
	return scopedStore{inner: store, prefix: prefix}
}

type scopedStore struct {
	inner  LocalStore
	prefix string
}

func (s scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s scopedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s scopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// lookup reads a key permissively: errors are logged and treated as absent.
func lookup(ctx context.Context, store LocalStore, key string) string {
	value, ok, err := store.Get(ctx, key)
	if err != nil {
		log.Printf("storage: read %s: %v", key, err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func loadIdentity(ctx context.Context, store LocalStore) (Identity, bool) {
	raw := lookup(ctx, store, KeyUser)
	if raw == "" {
		return Identity{}, false
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil || id.Email == "" {
		return Identity{}, false
	}
	return id, true
}

func saveIdentity(ctx context.Context, store LocalStore, id Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return store.Set(ctx, KeyUser, string(data))
}
