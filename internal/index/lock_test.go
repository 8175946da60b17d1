package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_Exclusive(t *testing.T) {
	// Given: a lock held for a database
	db := filepath.Join(t.TempDir(), "data", "vectors.db")
	first := NewFileLock(db)
	require.NoError(t, first.Lock(context.Background()))
	assert.Equal(t, db+".lock", first.Path())

	// When: a second holder tries the same database
	second := NewFileLock(db)
	ok, err := second.TryLock()

	// Then: it is refused until the first releases
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock())
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestFileLock_LockHonoursContext(t *testing.T) {
	db := filepath.Join(t.TempDir(), "vectors.db")
	holder := NewFileLock(db)
	require.NoError(t, holder.Lock(context.Background()))
	defer func() { _ = holder.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := NewFileLock(db).Lock(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileLock_UnlockWithoutLock(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "vectors.db"))
	assert.NoError(t, l.Unlock())
	assert.NoError(t, l.Unlock())
}
