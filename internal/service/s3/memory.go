package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryStorage keeps objects in process memory. It backs local runs without
// a bucket and the tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memoryObject)}
}

func (m *MemoryStorage) UploadBytes(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *MemoryStorage) GetObject(_ context.Context, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return NewObject(io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), obj.contentType), nil
}

func (m *MemoryStorage) DeleteObject(_ context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Keys lists the stored keys in order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
