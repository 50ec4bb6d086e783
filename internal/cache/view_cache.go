// Package cache keeps derived, queryable views of the puzzle collection in
// memory so presentation code does not hit the store on every read. The
// cache owns no authoritative data: it only relays store reads and transient
// optimistic placeholders, and can be discarded and rebuilt at any time.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"soup-server/internal/models"
	"soup-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Логические ключи кэша (по образцу SWR-ключей оригинального клиента)
const (
	// KeySoups хранит полный список супов.
	KeySoups = "soups"

	triesKeyPrefix      = "tries:"
	requestingKeyPrefix = "requesting:"
)

// KeyTries возвращает ключ списка вопросов одного супа.
func KeyTries(soupID uuid.UUID) string {
	return triesKeyPrefix + soupID.String()
}

// KeyRequesting возвращает ключ рекомендательного флага "операция в полете".
func KeyRequesting(soupID uuid.UUID) string {
	return requestingKeyPrefix + soupID.String()
}

// State describes what Read returns for a key.
type State int

const (
	StateLoading State = iota // Never fetched yet
	StateReady                // Value holds the last known data
	StateError                // The last fetch failed, Err holds the cause
)

// Entry is the cached value for one key.
type Entry struct {
	State State
	Value any
	Err   error
}

// Subscriber receives the new entry after every change to its key.
type Subscriber func(Entry)

// ViewCache is a reactive cache over the soup repository. Instances are
// created by the composition root and injected; there is no package-level
// instance.
type ViewCache struct {
	repo   repository.SoupRepository
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]Entry
	subs    map[string]map[int]Subscriber
	nextSub int
}

// NewViewCache создает пустой кэш поверх репозитория.
func NewViewCache(repo repository.SoupRepository, logger *zap.Logger) *ViewCache {
	return &ViewCache{
		repo:    repo,
		logger:  logger.Named("ViewCache"),
		entries: make(map[string]Entry),
		subs:    make(map[string]map[int]Subscriber),
	}
}

// Read returns the last known entry for key, or a loading sentinel if the
// key was never fetched.
func (c *ViewCache) Read(key string) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return Entry{State: StateLoading}
	}
	return entry
}

// Subscribe registers fn for changes to key and returns an unsubscribe func.
func (c *ViewCache) Subscribe(key string, fn Subscriber) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[key] == nil {
		c.subs[key] = make(map[int]Subscriber)
	}
	id := c.nextSub
	c.nextSub++
	c.subs[key][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[key], id)
	}
}

// InvalidateAndRefetch marks key stale and refetches it from the store in
// the background. Subscribers are notified exactly once with the new value
// or with the fetch error. The previous value stays readable while the
// refetch is in flight.
func (c *ViewCache) InvalidateAndRefetch(ctx context.Context, key string) {
	go func() {
		value, err := c.fetch(ctx, key)
		if err != nil {
			c.logger.Warn("Cache refetch failed", zap.String("key", key), zap.Error(err))
			c.publish(key, Entry{State: StateError, Err: err})
			return
		}
		c.publish(key, Entry{State: StateReady, Value: value})
	}()
}

// MutateOptimistically immediately presents optimistic to readers, then runs
// committer. On success the cached value becomes the committer's resolved
// data; on failure the pre-mutation entry is restored and the error is
// propagated to subscribers and returned.
func (c *ViewCache) MutateOptimistically(ctx context.Context, key string, optimistic any, committer func(ctx context.Context) (any, error)) (any, error) {
	// Снимок до мутации - значение для отката
	snapshot := c.Read(key)

	c.publish(key, Entry{State: StateReady, Value: optimistic})

	resolved, err := committer(ctx)
	if err != nil {
		c.logger.Warn("Optimistic mutation rolled back", zap.String("key", key), zap.Error(err))
		c.publish(key, snapshot)
		c.notifyError(key, err)
		return nil, err
	}

	c.publish(key, Entry{State: StateReady, Value: resolved})
	return resolved, nil
}

// SetRequesting выставляет рекомендательный флаг "запрос в полете" для супа.
func (c *ViewCache) SetRequesting(soupID uuid.UUID, inFlight bool) {
	c.publish(KeyRequesting(soupID), Entry{State: StateReady, Value: inFlight})
}

// TryAcquireRequesting atomically sets the in-flight flag and reports
// whether this caller won it. Check and set happen under one lock, so two
// concurrent operations on the same soup cannot both acquire the flag.
func (c *ViewCache) TryAcquireRequesting(soupID uuid.UUID) bool {
	key := KeyRequesting(soupID)

	c.mu.Lock()
	if inFlight, ok := c.entries[key].Value.(bool); ok && inFlight {
		c.mu.Unlock()
		return false
	}
	entry := Entry{State: StateReady, Value: true}
	c.entries[key] = entry
	subscribers := make([]Subscriber, 0, len(c.subs[key]))
	for _, fn := range c.subs[key] {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	for _, fn := range subscribers {
		fn(entry)
	}
	return true
}

// IsRequesting reports the advisory in-flight flag for a soup.
func (c *ViewCache) IsRequesting(soupID uuid.UUID) bool {
	entry := c.Read(KeyRequesting(soupID))
	inFlight, ok := entry.Value.(bool)
	return ok && inFlight
}

// Drop забывает ключ целиком (например, после каскадного удаления супа).
func (c *ViewCache) Drop(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// fetch разрешает логический ключ в запрос к хранилищу.
func (c *ViewCache) fetch(ctx context.Context, key string) (any, error) {
	switch {
	case key == KeySoups:
		return c.repo.ListSoups(ctx)
	case strings.HasPrefix(key, triesKeyPrefix):
		soupID, err := uuid.Parse(strings.TrimPrefix(key, triesKeyPrefix))
		if err != nil {
			return nil, fmt.Errorf("%w: bad tries cache key %q", models.ErrInvalidInput, key)
		}
		soup, err := c.repo.GetSoup(ctx, soupID)
		if err != nil {
			return nil, err
		}
		return soup.Tries, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache key %q", models.ErrInvalidInput, key)
	}
}

// publish сохраняет запись и уведомляет подписчиков ключа.
func (c *ViewCache) publish(key string, entry Entry) {
	c.mu.Lock()
	c.entries[key] = entry
	subscribers := make([]Subscriber, 0, len(c.subs[key]))
	for _, fn := range c.subs[key] {
		subscribers = append(subscribers, fn)
	}
	c.mu.Unlock()

	// Уведомляем вне блокировки
	for _, fn := range subscribers {
		fn(entry)
	}
}

// notifyError доставляет ошибку подписчикам, не трогая сохраненную запись.
func (c *ViewCache) notifyError(key string, err error) {
	c.mu.RLock()
	subscribers := make([]Subscriber, 0, len(c.subs[key]))
	for _, fn := range c.subs[key] {
		subscribers = append(subscribers, fn)
	}
	entry := c.entries[key]
	c.mu.RUnlock()

	failed := Entry{State: StateError, Value: entry.Value, Err: err}
	for _, fn := range subscribers {
		fn(failed)
	}
}
