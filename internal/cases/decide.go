package cases

import (
	"time"

	"github.com/jamolinav/ai-assist-attorney/models"
)

const (
	// FreshnessWindow is how long a ready case store serves without a
	// rebuild.
	FreshnessWindow = 24 * time.Hour

	// InProgressWindow is how recently a processing case must have
	// been touched to count as genuinely in flight. Older processing
	// rows are treated as abandoned and re-enqueued.
	InProgressWindow = time.Minute
)

// Action is the orchestrator's verdict on an incoming case request.
type Action int

const (
	// ActionServeCached serves the existing store without a new job.
	ActionServeCached Action = iota
	// ActionInProgress tells the caller a job is already running.
	ActionInProgress
	// ActionEnqueue schedules a fresh acquisition job.
	ActionEnqueue
)

func (a Action) String() string {
	switch a {
	case ActionServeCached:
		return "serve_cached"
	case ActionInProgress:
		return "in_progress"
	default:
		return "enqueue"
	}
}

// Decide maps a case's current status and last update time to the
// action a new request should take. Error rows always retry, stale
// ready rows rebuild, and only recently touched processing rows block.
func Decide(status string, updatedAt, now time.Time) Action {
	switch status {
	case models.StatusReady:
		if now.Sub(updatedAt) < FreshnessWindow {
			return ActionServeCached
		}
		return ActionEnqueue
	case models.StatusProcessing:
		if now.Sub(updatedAt) < InProgressWindow {
			return ActionInProgress
		}
		return ActionEnqueue
	default:
		// pending, error, not_found and unknown all re-enqueue.
		return ActionEnqueue
	}
}
