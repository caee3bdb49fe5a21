package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/service"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var handlerDBSeq int
var handlerDBSeqMu sync.Mutex

func newHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	handlerDBSeqMu.Lock()
	handlerDBSeq++
	dsn := fmt.Sprintf("file:handler_test_%d?mode=memory&cache=shared", handlerDBSeq)
	handlerDBSeqMu.Unlock()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// stubAdapter serves one canned post with one comment.
type stubAdapter struct{}

func (stubAdapter) Platform() string { return "instagram" }

func (stubAdapter) FetchPosts(ctx context.Context, profile string, maxPosts int, since *time.Time) ([]source.PostItem, error) {
	return []source.PostItem{{PlatformPostID: "p1", Caption: "launch day"}}, nil
}

func (stubAdapter) FetchComments(ctx context.Context, platformPostID string, maxComments int) ([]source.CommentItem, error) {
	return []source.CommentItem{{PlatformCommentID: "c1", Text: "love it"}}, nil
}

// stubClassifier returns a confident neutral result for every comment.
type stubClassifier struct{}

func (stubClassifier) Model() string { return "fake-model" }

func (stubClassifier) Classify(ctx context.Context, batch []service.ClassifierInput, promptVersion string) ([]service.ClassifierResult, error) {
	out := make([]service.ClassifierResult, len(batch))
	for i, in := range batch {
		score, conf := 5.0, 0.9
		out[i] = service.ClassifierResult{CommentID: in.ID, Score: &score, Confidence: &conf}
	}
	return out, nil
}

type pipelineHandlerFixture struct {
	router *gin.Engine
	runs   *repository.RunRepository
	conn   *domain.Connection
}

func newPipelineHandlerFixture(t *testing.T) *pipelineHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerTestDB(t)
	log := logger.New(&logger.Config{Level: "error", Format: "text"})

	connections := repository.NewConnectionRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	analyses := repository.NewAnalysisRepository(db)
	summaries := repository.NewSummaryRepository(db)
	runs := repository.NewRunRepository(db)

	conn := &domain.Connection{
		ID:          uuid.New().String(),
		UserID:      "user-1",
		Platform:    "instagram",
		Username:    "acme",
		Status:      domain.ConnectionStatusActive,
		ConnectedAt: time.Now().UTC(),
	}
	if err := db.Create(conn).Error; err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}

	ingest := service.NewIngestService(posts, comments, analyses, nil, log)
	analysis := service.NewAnalysisService(comments, analyses, stubClassifier{}, "v1", 30, log)
	summary := service.NewSummaryService(comments, analyses, summaries, "fake-model", "v1", log)
	tracker := service.NewRunTracker(runs, log)
	pipeline := service.NewPipelineService(
		connections, posts,
		ingest, analysis, summary, tracker,
		map[string]source.Adapter{"instagram": stubAdapter{}}, nil,
		service.IngestOptions{},
		log,
	)

	h := NewPipelineHandler(pipeline, runs, log)
	router := gin.New()
	router.POST("/api/v1/connections/:id/sync", h.TriggerSync)
	router.GET("/api/v1/runs/:id", h.GetRun)

	return &pipelineHandlerFixture{router: router, runs: runs, conn: conn}
}

// waitForTerminal polls the run row until the background execution settles.
func (f *pipelineHandlerFixture) waitForTerminal(t *testing.T, runID string) *domain.PipelineRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := f.runs.GetByID(context.Background(), runID)
		if err != nil {
			t.Fatalf("run lookup failed: %v", err)
		}
		if run.Status.Terminal() {
			return run
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("run never reached a terminal status")
	return nil
}

// The response must be serialized from a snapshot of the run record, because
// the background execution keeps mutating the live record after the handler
// returns.
func TestTriggerSyncResponseIsDetachedFromBackgroundRun(t *testing.T) {
	f := newPipelineHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/"+f.conn.ID+"/sync", nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		ID     string           `json:"id"`
		Status domain.RunStatus `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID == "" {
		t.Fatal("response carries no run id")
	}
	if body.Status != domain.RunStatusRunning {
		t.Errorf("response status = %q, want running", body.Status)
	}

	run := f.waitForTerminal(t, body.ID)
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("run status = %q, want completed", run.Status)
	}
	if run.CommentsAnalyzed != 1 {
		t.Errorf("comments analyzed = %d, want 1", run.CommentsAnalyzed)
	}
}

func TestTriggerSyncUnknownConnection(t *testing.T) {
	f := newPipelineHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/nope/sync", nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404, body: %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerSyncRejectsUnknownRunType(t *testing.T) {
	f := newPipelineHandlerFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/connections/"+f.conn.ID+"/sync?type=bogus", nil)
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
}
