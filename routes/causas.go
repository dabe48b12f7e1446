package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jamolinav/ai-assist-attorney/internal/cases"
	"github.com/jamolinav/ai-assist-attorney/internal/logger"
	"github.com/jamolinav/ai-assist-attorney/internal/progress"
	"github.com/jamolinav/ai-assist-attorney/internal/queue"
	"github.com/jamolinav/ai-assist-attorney/models"
)

// SetupCausaRoutes wires the case request, progress polling, and
// question endpoints.
func SetupCausaRoutes(router *gin.Engine, registry *cases.Registry, prog progress.Store, client *asynq.Client) {
	api := router.Group("/api")

	// Request a case. Serves from cache when the store is fresh,
	// reports in-progress when another request already claimed it,
	// and otherwise enqueues an acquisition job.
	api.POST("/causas", func(c *gin.Context) {
		var id models.CaseIdentity
		if err := c.ShouldBindJSON(&id); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_input",
				"message":    "Invalid case identity",
				"details":    gin.H{"error": err.Error()},
			})
			return
		}

		outcome, err := registry.RequestCase(c.Request.Context(), id)
		if err != nil {
			logger.Error("case request failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "registry_error",
				"message":    "Failed to resolve case",
			})
			return
		}

		resp := gin.H{
			"case_id": outcome.Case.ID.Hex(),
			"status":  outcome.Case.Status,
			"action":  outcome.Action.String(),
		}

		if outcome.Queued {
			progressKey := uuid.NewString()
			prog.Set(c.Request.Context(), progressKey, progress.Record{State: progress.StateQueued})

			task, err := queue.NewAcquireCaseTask(queue.AcquireCasePayload{
				CaseID:      outcome.Case.ID.Hex(),
				Identity:    id,
				ProgressKey: progressKey,
			})
			if err == nil {
				_, err = client.Enqueue(task)
			}
			if err != nil {
				logger.Error("failed to enqueue acquisition", "case_id", outcome.Case.ID.Hex(), "error", err)
				// Release the claim so the next request can retry.
				if setErr := registry.SetStatus(c.Request.Context(), outcome.Case.ID, models.StatusError, "enqueue failed"); setErr != nil {
					logger.Error("failed to release claim", "case_id", outcome.Case.ID.Hex(), "error", setErr)
				}
				c.JSON(http.StatusInternalServerError, gin.H{
					"error_code": "enqueue_failed",
					"message":    "Failed to schedule acquisition",
				})
				return
			}
			resp["progress_key"] = progressKey
		}

		c.JSON(http.StatusAccepted, resp)
	})

	// Poll progress of an acquisition or an async answer.
	api.GET("/progress", func(c *gin.Context) {
		key := c.Query("key")
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "missing_key",
				"message":    "progress key is required",
			})
			return
		}

		rec := prog.Get(c.Request.Context(), key)
		c.JSON(http.StatusOK, gin.H{
			"state":  rec.State,
			"detail": rec.Detail,
			"answer": rec.Answer,
		})
	})

	// Ask a question over a ready case. The answer arrives through the
	// progress record.
	api.POST("/causas/:id/ask", func(c *gin.Context) {
		caseID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_case_id",
				"message":    "Invalid case id",
			})
			return
		}

		var req struct {
			Question string `json:"question" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error_code": "invalid_input",
				"message":    "question is required",
			})
			return
		}

		caseRow, err := registry.GetByID(c.Request.Context(), caseID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error_code": "case_not_found",
				"message":    "Case is not registered",
			})
			return
		}
		if caseRow.Status != models.StatusReady {
			c.JSON(http.StatusConflict, gin.H{
				"error_code": "case_not_ready",
				"message":    "Case store is not ready",
				"status":     caseRow.Status,
			})
			return
		}

		progressKey := uuid.NewString()
		prog.Set(c.Request.Context(), progressKey, progress.Record{State: progress.StateQueued})

		task, err := queue.NewAnswerQuestionTask(queue.AnswerQuestionPayload{
			CaseID:      caseID.Hex(),
			Question:    req.Question,
			ProgressKey: progressKey,
		})
		if err == nil {
			_, err = client.Enqueue(task)
		}
		if err != nil {
			logger.Error("failed to enqueue answer", "case_id", caseID.Hex(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error_code": "enqueue_failed",
				"message":    "Failed to schedule answer",
			})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"case_id":      caseID.Hex(),
			"progress_key": progressKey,
		})
	})
}
