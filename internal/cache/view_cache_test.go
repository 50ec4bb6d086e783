package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"soup-server/internal/cache"
	"soup-server/internal/models"
	repoMocks "soup-server/internal/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func waitForEntry(t *testing.T, ch <-chan cache.Entry) cache.Entry {
	t.Helper()
	select {
	case entry := <-ch:
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("no cache notification arrived")
		return cache.Entry{}
	}
}

func TestReadUnknownKeyIsLoading(t *testing.T) {
	views := cache.NewViewCache(new(repoMocks.SoupRepository), zap.NewNop())

	entry := views.Read(cache.KeySoups)
	assert.Equal(t, cache.StateLoading, entry.State)
	assert.Nil(t, entry.Value)
}

func TestInvalidateAndRefetch(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful refetch notifies subscribers once", func(t *testing.T) {
		mockRepo := new(repoMocks.SoupRepository)
		views := cache.NewViewCache(mockRepo, zap.NewNop())

		soups := []models.Soup{{ID: uuid.New(), Title: "T", Status: models.StatusUnresolved}}
		mockRepo.On("ListSoups", ctx).Return(soups, nil).Once()

		ch := make(chan cache.Entry, 4)
		unsubscribe := views.Subscribe(cache.KeySoups, func(entry cache.Entry) { ch <- entry })
		defer unsubscribe()

		views.InvalidateAndRefetch(ctx, cache.KeySoups)

		entry := waitForEntry(t, ch)
		assert.Equal(t, cache.StateReady, entry.State)
		assert.Equal(t, soups, entry.Value)

		// Значение теперь доступно и синхронному чтению
		assert.Equal(t, cache.StateReady, views.Read(cache.KeySoups).State)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Failed refetch keeps the error, not a value", func(t *testing.T) {
		mockRepo := new(repoMocks.SoupRepository)
		views := cache.NewViewCache(mockRepo, zap.NewNop())

		storeErr := errors.New("connection refused")
		mockRepo.On("ListSoups", ctx).Return(nil, storeErr).Once()

		ch := make(chan cache.Entry, 4)
		unsubscribe := views.Subscribe(cache.KeySoups, func(entry cache.Entry) { ch <- entry })
		defer unsubscribe()

		views.InvalidateAndRefetch(ctx, cache.KeySoups)

		entry := waitForEntry(t, ch)
		assert.Equal(t, cache.StateError, entry.State)
		assert.ErrorIs(t, entry.Err, storeErr)
	})

	t.Run("Tries key resolves through the parent soup", func(t *testing.T) {
		mockRepo := new(repoMocks.SoupRepository)
		views := cache.NewViewCache(mockRepo, zap.NewNop())

		soupID := uuid.New()
		soup := &models.Soup{
			ID:     soupID,
			Status: models.StatusUnresolved,
			Tries:  []models.Try{{ID: uuid.New(), SoupID: soupID, Status: models.TryStatusInvalid}},
		}
		mockRepo.On("GetSoup", ctx, soupID).Return(soup, nil).Once()

		key := cache.KeyTries(soupID)
		ch := make(chan cache.Entry, 4)
		unsubscribe := views.Subscribe(key, func(entry cache.Entry) { ch <- entry })
		defer unsubscribe()

		views.InvalidateAndRefetch(ctx, key)

		entry := waitForEntry(t, ch)
		require.Equal(t, cache.StateReady, entry.State)
		assert.Equal(t, soup.Tries, entry.Value)
	})
}

func TestMutateOptimistically(t *testing.T) {
	ctx := context.Background()

	t.Run("Optimistic value is visible while the commit runs", func(t *testing.T) {
		views := cache.NewViewCache(new(repoMocks.SoupRepository), zap.NewNop())

		resolved, err := views.MutateOptimistically(ctx, cache.KeySoups, "optimistic",
			func(ctx context.Context) (any, error) {
				// Читатель внутри коммита уже видит оптимистичное значение
				entry := views.Read(cache.KeySoups)
				assert.Equal(t, cache.StateReady, entry.State)
				assert.Equal(t, "optimistic", entry.Value)
				return "committed", nil
			})

		assert.NoError(t, err)
		assert.Equal(t, "committed", resolved)
		assert.Equal(t, "committed", views.Read(cache.KeySoups).Value)
	})

	t.Run("Failed commit restores the snapshot and notifies", func(t *testing.T) {
		mockRepo := new(repoMocks.SoupRepository)
		views := cache.NewViewCache(mockRepo, zap.NewNop())

		// Прогреваем кэш известным значением
		soups := []models.Soup{{ID: uuid.New(), Title: "Before", Status: models.StatusUnresolved}}
		mockRepo.On("ListSoups", ctx).Return(soups, nil).Once()
		warm := make(chan cache.Entry, 1)
		stop := views.Subscribe(cache.KeySoups, func(entry cache.Entry) { warm <- entry })
		views.InvalidateAndRefetch(ctx, cache.KeySoups)
		waitForEntry(t, warm)
		stop()

		ch := make(chan cache.Entry, 8)
		unsubscribe := views.Subscribe(cache.KeySoups, func(entry cache.Entry) { ch <- entry })
		defer unsubscribe()

		commitErr := errors.New("judge is unavailable")
		resolved, err := views.MutateOptimistically(ctx, cache.KeySoups, "optimistic",
			func(ctx context.Context) (any, error) {
				return nil, commitErr
			})

		assert.Nil(t, resolved)
		assert.ErrorIs(t, err, commitErr)

		// Снимок восстановлен, оптимистичное значение исчезло
		entry := views.Read(cache.KeySoups)
		assert.Equal(t, cache.StateReady, entry.State)
		assert.Equal(t, soups, entry.Value)

		// Подписчик видел оптимистичное значение, откат и ошибку
		first := waitForEntry(t, ch)
		assert.Equal(t, "optimistic", first.Value)
		rollback := waitForEntry(t, ch)
		assert.Equal(t, soups, rollback.Value)
		failure := waitForEntry(t, ch)
		assert.Equal(t, cache.StateError, failure.State)
		assert.ErrorIs(t, failure.Err, commitErr)
	})
}

func TestTryAcquireRequesting(t *testing.T) {
	t.Run("Second acquire loses until release", func(t *testing.T) {
		views := cache.NewViewCache(new(repoMocks.SoupRepository), zap.NewNop())
		soupID := uuid.New()

		assert.True(t, views.TryAcquireRequesting(soupID))
		assert.False(t, views.TryAcquireRequesting(soupID))
		assert.True(t, views.IsRequesting(soupID))

		views.SetRequesting(soupID, false)
		assert.True(t, views.TryAcquireRequesting(soupID))
	})

	t.Run("Exactly one of concurrent acquirers wins", func(t *testing.T) {
		views := cache.NewViewCache(new(repoMocks.SoupRepository), zap.NewNop())
		soupID := uuid.New()

		const goroutines = 32
		var wins int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if views.TryAcquireRequesting(soupID) {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), wins)
		assert.True(t, views.IsRequesting(soupID))
	})
}

func TestRequestingFlag(t *testing.T) {
	views := cache.NewViewCache(new(repoMocks.SoupRepository), zap.NewNop())
	soupID := uuid.New()

	assert.False(t, views.IsRequesting(soupID))

	views.SetRequesting(soupID, true)
	assert.True(t, views.IsRequesting(soupID))
	// Флаг привязан к конкретному супу
	assert.False(t, views.IsRequesting(uuid.New()))

	views.SetRequesting(soupID, false)
	assert.False(t, views.IsRequesting(soupID))
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(repoMocks.SoupRepository)
	views := cache.NewViewCache(mockRepo, zap.NewNop())

	mockRepo.On("ListSoups", ctx).Return([]models.Soup{}, nil).Once()
	ch := make(chan cache.Entry, 1)
	stop := views.Subscribe(cache.KeySoups, func(entry cache.Entry) { ch <- entry })
	views.InvalidateAndRefetch(ctx, cache.KeySoups)
	waitForEntry(t, ch)
	stop()

	views.Drop(cache.KeySoups)
	assert.Equal(t, cache.StateLoading, views.Read(cache.KeySoups).State)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	views := cache.NewViewCache(new(repoMocks.SoupRepository), zap.NewNop())

	calls := 0
	unsubscribe := views.Subscribe(cache.KeySoups, func(cache.Entry) { calls++ })

	_, _ = views.MutateOptimistically(context.Background(), cache.KeySoups, "v1",
		func(ctx context.Context) (any, error) { return "v1", nil })
	assert.Equal(t, 2, calls) // оптимистичная публикация + фиксация

	unsubscribe()

	_, _ = views.MutateOptimistically(context.Background(), cache.KeySoups, "v2",
		func(ctx context.Context) (any, error) { return "v2", nil })
	assert.Equal(t, 2, calls)
}
