package notify

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/graphilearn/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Set(zap.NewNop())
	os.Exit(m.Run())
}

func TestMemoryNotifierDrainsInOrder(t *testing.T) {
	ctx := context.Background()
	n := NewMemoryNotifier()
	sink := For(n, "tab-1")

	sink.Notify(ctx, Info("Succès", "Tutoriel créé avec succès"))
	sink.Notify(ctx, Failure("Erreur", "Impossible de supprimer le tutoriel"))

	got, err := n.Drain(ctx, "tab-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Succès", got[0].Title)
	assert.Equal(t, VariantDefault, got[0].Variant)
	assert.Equal(t, VariantDestructive, got[1].Variant)
	assert.False(t, got[0].CreatedAt.IsZero())

	again, err := n.Drain(ctx, "tab-1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMemoryNotifierIsolatesAudiencesAndCaps(t *testing.T) {
	ctx := context.Background()
	n := NewMemoryNotifier()
	for i := 0; i < maxPending+5; i++ {
		require.NoError(t, n.Push(ctx, "a", Info(fmt.Sprintf("n%d", i), "")))
	}
	require.NoError(t, n.Push(ctx, "b", Info("other", "")))

	a, _ := n.Drain(ctx, "a")
	require.Len(t, a, maxPending)
	assert.Equal(t, "n5", a[0].Title)

	b, _ := n.Drain(ctx, "b")
	require.Len(t, b, 1)
}
