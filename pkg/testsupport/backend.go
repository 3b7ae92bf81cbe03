package testsupport

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// RecordingBackend is a map-backed cache backend remembering the timeout of
// every write.
type RecordingBackend struct {
	mu       sync.Mutex
	values   map[string][]byte
	timeouts map[string]time.Duration
	gets     int
	sets     int
}

// NewRecordingBackend returns an empty backend.
func NewRecordingBackend() *RecordingBackend {
	return &RecordingBackend{
		values:   make(map[string][]byte),
		timeouts: make(map[string]time.Duration),
	}
}

func (b *RecordingBackend) Get(_ context.Context, key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	v, ok := b.values[key]
	return v, ok
}

func (b *RecordingBackend) Set(_ context.Context, key string, value []byte, timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets++
	b.values[key] = append([]byte(nil), value...)
	b.timeouts[key] = timeout
	return nil
}

func (b *RecordingBackend) DeleteMany(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.values, k)
		delete(b.timeouts, k)
	}
	return nil
}

func (b *RecordingBackend) DeleteByPrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.values {
		if strings.HasPrefix(k, prefix) {
			delete(b.values, k)
			delete(b.timeouts, k)
		}
	}
	return nil
}

// Keys returns the stored keys, sorted.
func (b *RecordingBackend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is stored.
func (b *RecordingBackend) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.values[key]
	return ok
}

// Timeout returns the timeout key was written with.
func (b *RecordingBackend) Timeout(key string) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.timeouts[key]
	return d, ok
}

// Put stores a raw value, bypassing the write counter.
func (b *RecordingBackend) Put(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Gets returns the number of reads.
func (b *RecordingBackend) Gets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

// Sets returns the number of writes.
func (b *RecordingBackend) Sets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sets
}
