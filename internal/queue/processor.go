package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jamolinav/ai-assist-attorney/internal/ai"
	"github.com/jamolinav/ai-assist-attorney/internal/casestore"
	"github.com/jamolinav/ai-assist-attorney/internal/config"
	"github.com/jamolinav/ai-assist-attorney/internal/ingest"
	"github.com/jamolinav/ai-assist-attorney/internal/logger"
	"github.com/jamolinav/ai-assist-attorney/internal/portal"
	"github.com/jamolinav/ai-assist-attorney/internal/progress"
	"github.com/jamolinav/ai-assist-attorney/internal/rag"
	"github.com/jamolinav/ai-assist-attorney/internal/telemetry"
	"github.com/jamolinav/ai-assist-attorney/models"
	"github.com/jamolinav/ai-assist-attorney/services"
)

// CaseRegistry is the slice of the case registry the handlers touch.
// *cases.Registry satisfies it.
type CaseRegistry interface {
	ClaimForProcessing(ctx context.Context, caseID primitive.ObjectID) (bool, error)
	SetStatus(ctx context.Context, caseID primitive.ObjectID, status, lastError string) error
	SetReady(ctx context.Context, caseID primitive.ObjectID, docDir, storePath string) error
	GetByID(ctx context.Context, caseID primitive.ObjectID) (*models.Case, error)
}

// StoreArchive persists built case stores and restores them on workers
// that did not build them. *archive.Archive satisfies it.
type StoreArchive interface {
	Upload(ctx context.Context, localPath, remoteName string) error
	Download(ctx context.Context, remoteName, localPath string) error
}

// searchFunc runs the portal search for one case identity.
type searchFunc func(portalURL string, headless bool, q portal.Query) (*portal.Session, bool, error)

// TaskProcessor owns the worker-side handlers for every task type.
type TaskProcessor struct {
	cfg      *config.Config
	registry CaseRegistry
	progress progress.Store
	gemini   *ai.GeminiClient
	archive  StoreArchive
	metrics  *telemetry.Metrics
	search   searchFunc
}

func NewTaskProcessor(cfg *config.Config, registry CaseRegistry, prog progress.Store, gemini *ai.GeminiClient, arc StoreArchive, metrics *telemetry.Metrics) *TaskProcessor {
	return &TaskProcessor{
		cfg:      cfg,
		registry: registry,
		progress: prog,
		gemini:   gemini,
		archive:  arc,
		metrics:  metrics,
		search:   portal.SearchWithRetry,
	}
}

// storeRemoteName is the archive key for a case store file.
func storeRemoteName(caseID primitive.ObjectID, storeName string) string {
	return fmt.Sprintf("causas/%s/%s", caseID.Hex(), storeName)
}

// Register wires every task type into the mux. The handler map is
// checked for completeness first so a missing handler fails worker
// startup instead of surfacing as dead-letter tasks at runtime.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) error {
	handlers := map[string]asynq.HandlerFunc{
		TaskAcquireCase:    p.HandleAcquireCase,
		TaskAnswerQuestion: p.HandleAnswerQuestion,
	}

	for _, taskType := range []string{TaskAcquireCase, TaskAnswerQuestion} {
		h, ok := handlers[taskType]
		if !ok || h == nil {
			return fmt.Errorf("no handler registered for task type %q", taskType)
		}
		mux.HandleFunc(taskType, h)
	}
	return nil
}

// HandleAcquireCase runs the full acquisition: claim the registry row,
// drive the portal wizard, download documents, build and archive the
// case store.
func (p *TaskProcessor) HandleAcquireCase(ctx context.Context, t *asynq.Task) error {
	var payload AcquireCasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	caseID, err := primitive.ObjectIDFromHex(payload.CaseID)
	if err != nil {
		return fmt.Errorf("bad case id %q: %w", payload.CaseID, asynq.SkipRetry)
	}

	claimed, err := p.registry.ClaimForProcessing(ctx, caseID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another worker holds the row. Drop the task quietly.
		logger.Info("case already claimed, skipping", "case_id", payload.CaseID)
		return nil
	}

	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateObtainingCase})

	if err := p.acquire(ctx, caseID, payload); err != nil {
		p.metrics.RecordJob("error")
		p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateError, Detail: err.Error()})
		if setErr := p.registry.SetStatus(ctx, caseID, models.StatusError, err.Error()); setErr != nil {
			logger.Error("failed to record case error", "case_id", payload.CaseID, "error", setErr)
		}
		return err
	}
	return nil
}

func (p *TaskProcessor) acquire(ctx context.Context, caseID primitive.ObjectID, payload AcquireCasePayload) error {
	id := payload.Identity
	q := portal.Query{
		Jurisdiction: id.Jurisdiction,
		Court:        id.Court,
		Tribunal:     id.Tribunal,
		CaseType:     id.CaseType,
		Roll:         id.Roll,
		Year:         id.Year,
	}

	session, found, err := p.search(p.cfg.PortalURL, p.cfg.PortalHeadless, q)
	if errors.Is(err, portal.ErrSelectionUnavailable) {
		// The identity names a tribunal or case type the portal does
		// not offer. That is a definitive not-found, not a failure.
		return p.finishNotFound(ctx, caseID, payload.ProgressKey)
	}
	if err != nil {
		return fmt.Errorf("portal search failed: %w", err)
	}
	defer session.Close()

	if !found {
		return p.finishNotFound(ctx, caseID, payload.ProgressKey)
	}

	if err := session.OpenDetail(); err != nil {
		return err
	}
	detailHTML, err := session.DetailTableHTML()
	if err != nil {
		return err
	}
	rows, err := portal.ParseDetailRows(detailHTML, p.cfg.PortalURL)
	if err != nil {
		return fmt.Errorf("failed to parse detail table: %w", err)
	}
	if len(rows) == 0 {
		return p.finishNotFound(ctx, caseID, payload.ProgressKey)
	}

	cookies, err := session.Cookies()
	if err != nil {
		return err
	}

	docDir := filepath.Join(p.cfg.DownloadDir, caseID.Hex())
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		return fmt.Errorf("failed to create document dir: %w", err)
	}

	fetcher := portal.NewDocumentFetcher(cookies)
	downloaded := 0
	for idx, row := range rows {
		if !row.HasDocument() {
			continue
		}
		p.progress.Set(ctx, payload.ProgressKey, progress.Record{
			State:  progress.StateObtainingCase,
			Detail: fmt.Sprintf("descargando documento %d de %d", downloaded+1, len(rows)),
		})
		if _, err := fetcher.Fetch(row, idx, docDir); err != nil {
			p.metrics.RecordDownload(false)
			return fmt.Errorf("failed to download document %q: %w", row.Folio, err)
		}
		p.metrics.RecordDownload(true)
		downloaded++
	}

	// The detail sheet is a convenience artifact; losing it is not a
	// job failure.
	if err := services.WriteDetailSheet(filepath.Join(docDir, "caratulado.xlsx"), rows); err != nil {
		logger.Warn("failed to write detail sheet", "case_id", caseID.Hex(), "error", err)
	}

	if err := os.MkdirAll(p.cfg.StoreRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create store root: %w", err)
	}
	storeName := fmt.Sprintf("causa_%s.db", caseID.Hex())
	storePath := filepath.Join(p.cfg.StoreRoot, storeName)
	os.Remove(storePath)

	store, err := casestore.Open(storePath)
	if err != nil {
		return err
	}

	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateGatheringContext})

	pipeline := ingest.NewPipeline(p.gemini, p.cfg.ChunkSize, p.cfg.ChunkOverlap, p.cfg.EmbedBatchSize)
	chunks, err := pipeline.IngestDir(ctx, store, docDir)
	closeErr := store.Close()
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close case store: %w", closeErr)
	}
	p.metrics.RecordChunks(int64(chunks))

	if err := p.archive.Upload(ctx, storePath, storeRemoteName(caseID, storeName)); err != nil {
		return fmt.Errorf("failed to archive case store: %w", err)
	}

	if err := p.registry.SetReady(ctx, caseID, docDir, storePath); err != nil {
		return err
	}

	p.metrics.RecordJob("ready")
	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateDone})
	logger.Info("case acquired", "case_id", caseID.Hex(), "documents", downloaded, "chunks", chunks)
	return nil
}

func (p *TaskProcessor) finishNotFound(ctx context.Context, caseID primitive.ObjectID, progressKey string) error {
	if err := p.registry.SetStatus(ctx, caseID, models.StatusNotFound, ""); err != nil {
		return err
	}
	p.metrics.RecordJob("not_found")
	p.progress.Set(ctx, progressKey, progress.Record{State: progress.StateDone, Detail: "causa no encontrada"})
	logger.Info("case not found on portal", "case_id", caseID.Hex())
	return nil
}

// ensureStore makes the case store file available locally. A ready case
// archived by another worker is fetched from GridFS; a missing archive
// entry is an error, never an empty store.
func (p *TaskProcessor) ensureStore(ctx context.Context, c *models.Case) error {
	if c.StorePath == "" {
		return fmt.Errorf("case %s has no store path", c.ID.Hex())
	}
	if _, err := os.Stat(c.StorePath); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.StorePath), 0o755); err != nil {
		return fmt.Errorf("failed to create store root: %w", err)
	}

	remoteName := storeRemoteName(c.ID, filepath.Base(c.StorePath))
	if err := p.archive.Download(ctx, remoteName, c.StorePath); err != nil {
		return fmt.Errorf("case store %s absent locally and in the archive: %w", c.StorePath, err)
	}
	logger.Info("case store restored from archive", "case_id", c.ID.Hex(), "path", c.StorePath)
	return nil
}

// HandleAnswerQuestion answers a question over a ready case store,
// walking the progress states as it goes.
func (p *TaskProcessor) HandleAnswerQuestion(ctx context.Context, t *asynq.Task) error {
	var payload AnswerQuestionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	caseID, err := primitive.ObjectIDFromHex(payload.CaseID)
	if err != nil {
		return fmt.Errorf("bad case id %q: %w", payload.CaseID, asynq.SkipRetry)
	}

	start := time.Now()
	c, err := p.registry.GetByID(ctx, caseID)
	if err != nil {
		p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateError, Detail: "causa no registrada"})
		return asynq.SkipRetry
	}
	if c.Status != models.StatusReady {
		p.progress.Set(ctx, payload.ProgressKey, progress.Record{
			State:  progress.StateError,
			Detail: fmt.Sprintf("causa en estado %s", c.Status),
		})
		return asynq.SkipRetry
	}

	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateGatheringContext})

	// Opening a path that does not exist would create an empty store
	// and answer from nothing. Restore the built store first.
	if err := p.ensureStore(ctx, c); err != nil {
		p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateError, Detail: err.Error()})
		return err
	}

	store, err := casestore.Open(c.StorePath)
	if err != nil {
		p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateError, Detail: err.Error()})
		return err
	}
	defer store.Close()

	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateCallingLLM})

	answerer := rag.NewAnswerer(p.gemini, p.gemini.EmbedQuery, p.cfg.LexicalK, p.cfg.RerankK)
	answer, trace := answerer.Answer(ctx, store, payload.Question)
	trace.CaseID = payload.CaseID
	trace.Model = p.cfg.GeminiChatModel

	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateStreamingAnswer})

	if _, err := rag.WriteTrace(trace, p.cfg.TraceDir); err != nil {
		logger.Warn("failed to write answer trace", "case_id", payload.CaseID, "error", err)
	}

	p.metrics.RecordAnswer(time.Since(start).Seconds(), "done")
	p.progress.Set(ctx, payload.ProgressKey, progress.Record{State: progress.StateDone, Answer: answer})
	return nil
}
