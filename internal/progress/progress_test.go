package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "abc", Record{State: StateObtainingCase, Detail: "descargando folio 12"})
	got := store.Get(ctx, "abc")
	assert.Equal(t, StateObtainingCase, got.State)
	assert.Equal(t, "descargando folio 12", got.Detail)

	store.Set(ctx, "abc", Record{State: StateDone, Answer: "respuesta final"})
	got = store.Get(ctx, "abc")
	assert.Equal(t, StateDone, got.State)
	assert.Equal(t, "respuesta final", got.Answer)
}

func TestMemoryStoreUnknownKey(t *testing.T) {
	store := NewMemoryStore()
	got := store.Get(context.Background(), "missing")
	assert.Equal(t, StateError, got.State)
	assert.Equal(t, "unknown key", got.Detail)
}
