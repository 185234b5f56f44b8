package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/graphilearn/engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReusesAndSweeps(t *testing.T) {
	var built int32
	r := NewRegistry(func(_ context.Context, sid, token string) *Manager {
		atomic.AddInt32(&built, 1)
		return NewManager(newFakeAuth(), staticStore(models.RoleUser), Options{Audience: sid})
	}, time.Minute)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a := r.Get(context.Background(), "sid-a", "")
	assert.Same(t, a, r.Get(context.Background(), "sid-a", ""))
	b := r.Get(context.Background(), "sid-b", "")
	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), atomic.LoadInt32(&built))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Wait(ctx))
	assert.Equal(t, "sid-a", a.Viewer().Audience)

	now = now.Add(45 * time.Second)
	r.Get(context.Background(), "sid-b", "")
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.Sweep())
	assert.True(t, a.Closed())
	assert.False(t, b.Closed())
	assert.Equal(t, 1, r.Len())

	fresh := r.Get(context.Background(), "sid-a", "")
	assert.NotSame(t, a, fresh)

	r.Drop("sid-b")
	assert.True(t, b.Closed())
	assert.Equal(t, 1, r.Len())
}
