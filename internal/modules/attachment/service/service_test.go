package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uncommon.org/progresstrack/internal/modules/attachment/repository"
	"uncommon.org/progresstrack/pkg/storage"
)

type flakyStore struct {
	mu      sync.Mutex
	failFor map[string]bool
	deleted []string
}

func (f *flakyStore) Put(ctx context.Context, r io.Reader, size int64, fileName string) (*storage.Object, error) {
	return nil, errors.New("not used")
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[id] {
		return errors.New("store unavailable")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *flakyStore) Ensure(ctx context.Context) error { return nil }

func newTestCleanup(t *testing.T, store storage.AttachmentStore) (CleanupService, repository.PendingDeleteRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pending := repository.NewPendingDeleteRepository(rdb)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCleanupService(pending, store, logger), pending
}

func TestCleanupPendingAttachments(t *testing.T) {
	store := &flakyStore{failFor: map[string]bool{"bad.png": true}}
	svc, pending := newTestCleanup(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Enqueue(ctx, "a.png"))
	require.NoError(t, svc.Enqueue(ctx, "b.png"))
	require.NoError(t, svc.Enqueue(ctx, "bad.png"))
	require.NoError(t, svc.Enqueue(ctx, "a.png"))
	require.NoError(t, svc.Enqueue(ctx, ""))

	count, err := pending.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	removed, err := svc.CleanupPendingAttachments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"a.png", "b.png"}, store.deleted)

	left, err := pending.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bad.png"}, left)

	// the store recovers and the next sweep drains the queue
	store.failFor = nil
	removed, err = svc.CleanupPendingAttachments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err = pending.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStartCleanupWorker_StopsOnCancel(t *testing.T) {
	store := &flakyStore{}
	svc, _ := newTestCleanup(t, store)
	require.NoError(t, svc.Enqueue(context.Background(), "x.png"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartCleanupWorker(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.deleted) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
