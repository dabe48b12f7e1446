package cases

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jamolinav/ai-assist-attorney/models"
)

func TestDecideFreshReadyServesCache(t *testing.T) {
	now := time.Now().UTC()
	got := Decide(models.StatusReady, now.Add(-23*time.Hour), now)
	assert.Equal(t, ActionServeCached, got)
}

func TestDecideStaleReadyReacquires(t *testing.T) {
	now := time.Now().UTC()
	got := Decide(models.StatusReady, now.Add(-25*time.Hour), now)
	assert.Equal(t, ActionEnqueue, got)
}

func TestDecideRecentProcessingInProgress(t *testing.T) {
	now := time.Now().UTC()
	got := Decide(models.StatusProcessing, now.Add(-10*time.Second), now)
	assert.Equal(t, ActionInProgress, got)
}

func TestDecideStaleProcessingReacquires(t *testing.T) {
	// A worker that died mid-acquisition must not block the case
	// beyond the in-progress window.
	now := time.Now().UTC()
	got := Decide(models.StatusProcessing, now.Add(-2*time.Minute), now)
	assert.Equal(t, ActionEnqueue, got)
}

func TestDecideTerminalStatesEnqueue(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []string{models.StatusPending, models.StatusError, models.StatusNotFound} {
		got := Decide(status, now, now)
		assert.Equal(t, ActionEnqueue, got, "status %s", status)
	}
}

func TestDecideExactWindowBoundaries(t *testing.T) {
	// An age of exactly the window is already stale.
	now := time.Now().UTC()
	assert.Equal(t, ActionEnqueue, Decide(models.StatusReady, now.Add(-FreshnessWindow), now))
	assert.Equal(t, ActionEnqueue, Decide(models.StatusProcessing, now.Add(-InProgressWindow), now))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "serve_cached", ActionServeCached.String())
	assert.Equal(t, "in_progress", ActionInProgress.String())
	assert.Equal(t, "enqueue", ActionEnqueue.String())
}
