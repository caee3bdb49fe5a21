package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"gorm.io/gorm"
)

type pipelineFixture struct {
	db          *gorm.DB
	svc         *PipelineService
	runs        *repository.RunRepository
	connections *repository.ConnectionRepository
	fakeAdapter *fakeAdapter
	fakeLLM     *fakeClassifier
	invalidator *spyInvalidator
	conn        *domain.Connection
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger()

	connectionRepo := repository.NewConnectionRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)
	runRepo := repository.NewRunRepository(db)

	conn := seedConnection(t, db)
	adapter := &fakeAdapter{
		posts: []source.PostItem{{PlatformPostID: "p1", LikeCount: 10}},
		comments: map[string][]source.CommentItem{
			"p1": {
				{PlatformCommentID: "c1", Text: "love it", LikeCount: 3},
				{PlatformCommentID: "c2", Text: "hate it"},
			},
		},
	}
	fakeLLM := &fakeClassifier{results: map[string]ClassifierResult{
		"love it": result(9, 0.95, "joy"),
		"hate it": result(1, 0.9, "anger"),
	}}
	invalidator := &spyInvalidator{}

	ingest := NewIngestService(postRepo, commentRepo, analysisRepo, nil, log)
	analysis := NewAnalysisService(commentRepo, analysisRepo, fakeLLM, "v1", 30, log)
	summary := NewSummaryService(commentRepo, analysisRepo, summaryRepo, fakeLLM.Model(), "v1", log)
	tracker := NewRunTracker(runRepo, log)

	svc := NewPipelineService(
		connectionRepo, postRepo,
		ingest, analysis, summary, tracker,
		map[string]source.Adapter{"instagram": adapter},
		invalidator,
		IngestOptions{MaxPosts: 10, MaxCommentsPerPost: 100},
		log,
	)

	return &pipelineFixture{
		db:          db,
		svc:         svc,
		runs:        runRepo,
		connections: connectionRepo,
		fakeAdapter: adapter,
		fakeLLM:     fakeLLM,
		invalidator: invalidator,
		conn:        conn,
	}
}

func (f *pipelineFixture) execute(t *testing.T, ctx context.Context, runType domain.RunType) *domain.PipelineRun {
	t.Helper()
	run, err := f.svc.StartRun(context.Background(), f.conn.ID, runType)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := f.svc.Execute(ctx, run); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	stored, err := f.runs.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run lookup failed: %v", err)
	}
	return stored
}

func TestExecuteFullRunCompletes(t *testing.T) {
	f := newPipelineFixture(t)
	run := f.execute(t, context.Background(), domain.RunTypeFull)

	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed (notes: %s)", run.Status, run.Notes)
	}
	if run.PostsFetched != 1 || run.CommentsFetched != 2 {
		t.Errorf("fetch counters = %d/%d, want 1/2", run.PostsFetched, run.CommentsFetched)
	}
	if run.CommentsAnalyzed != 2 || run.ErrorsCount != 0 {
		t.Errorf("analysis counters = %d analyzed %d errors, want 2/0", run.CommentsAnalyzed, run.ErrorsCount)
	}
	if run.LLMCalls != 1 {
		t.Errorf("llm calls = %d, want 1", run.LLMCalls)
	}
	if run.EndedAt == nil {
		t.Error("terminal run must carry ended_at")
	}

	var summaries int64
	f.db.Model(&domain.PostSummary{}).Count(&summaries)
	if summaries != 1 {
		t.Errorf("summaries = %d, want 1", summaries)
	}

	conn, err := f.connections.GetByID(context.Background(), f.conn.ID)
	if err != nil {
		t.Fatalf("connection lookup failed: %v", err)
	}
	if conn.LastSyncAt == nil {
		t.Error("successful ingest must update last_sync_at")
	}

	if calls := f.invalidator.calls(); len(calls) != 1 || calls[0] != "user-1" {
		t.Errorf("invalidator calls = %v, want one for user-1", calls)
	}
}

func TestExecuteWritesDoneProgress(t *testing.T) {
	f := newPipelineFixture(t)
	run := f.execute(t, context.Background(), domain.RunTypeFull)

	var progress domain.RunProgress
	if err := json.Unmarshal([]byte(run.Notes), &progress); err != nil {
		t.Fatalf("notes are not a progress payload: %v (notes: %s)", err, run.Notes)
	}
	if progress.Step != "done" {
		t.Errorf("progress step = %q, want done", progress.Step)
	}
	if progress.Current != 1 || progress.Total != 1 {
		t.Errorf("progress = %d/%d, want 1/1", progress.Current, progress.Total)
	}
}

func TestExecuteSecondRunIsIncremental(t *testing.T) {
	f := newPipelineFixture(t)
	f.execute(t, context.Background(), domain.RunTypeFull)
	run := f.execute(t, context.Background(), domain.RunTypeFull)

	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed", run.Status)
	}
	// Nothing changed upstream, so no comment goes back through the model.
	if run.CommentsAnalyzed != 0 {
		t.Errorf("re-run analyzed %d comments, want 0", run.CommentsAnalyzed)
	}
	if f.fakeLLM.called != 1 {
		t.Errorf("classifier called %d times across both runs, want 1", f.fakeLLM.called)
	}
}

func TestExecutePostFetchFailureFailsRun(t *testing.T) {
	f := newPipelineFixture(t)
	f.fakeAdapter.postsErr = errors.New("account suspended")

	run := f.execute(t, context.Background(), domain.RunTypeFull)
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}
	if run.Notes == "" {
		t.Error("failed run should carry the failure cause in notes")
	}
}

func TestExecuteUnknownPlatformFailsRun(t *testing.T) {
	f := newPipelineFixture(t)
	if err := f.db.Model(&domain.Connection{}).Where("id = ?", f.conn.ID).
		Update("platform", "myspace").Error; err != nil {
		t.Fatalf("failed to change platform: %v", err)
	}

	run := f.execute(t, context.Background(), domain.RunTypeFull)
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}
}

func TestExecuteLowConfidenceDegradesToPartial(t *testing.T) {
	f := newPipelineFixture(t)
	f.fakeLLM.results["hate it"] = result(0, 0)

	run := f.execute(t, context.Background(), domain.RunTypeFull)
	if run.Status != domain.RunStatusPartial {
		t.Fatalf("run status = %q, want partial", run.Status)
	}
	if run.ErrorsCount != 1 {
		t.Errorf("errors = %d, want 1", run.ErrorsCount)
	}
	// The low-confidence comment still got a persisted result.
	if run.CommentsAnalyzed != 2 {
		t.Errorf("analyzed = %d, want 2", run.CommentsAnalyzed)
	}
}

func TestExecuteCancellationSettlesPartial(t *testing.T) {
	f := newPipelineFixture(t)

	// Ingest first so the analyze walk has stored posts to cancel against.
	f.execute(t, context.Background(), domain.RunTypeIngest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := f.svc.StartRun(context.Background(), f.conn.ID, domain.RunTypeAnalyze)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := f.svc.Execute(ctx, run); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	stored, err := f.runs.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("run lookup failed: %v", err)
	}
	if stored.Status != domain.RunStatusPartial {
		t.Fatalf("cancelled run status = %q, want partial", stored.Status)
	}
	if stored.EndedAt == nil {
		t.Error("cancelled run must still settle with ended_at")
	}
}

func TestExecuteIngestOnlySkipsClassifier(t *testing.T) {
	f := newPipelineFixture(t)
	run := f.execute(t, context.Background(), domain.RunTypeIngest)

	if run.Status != domain.RunStatusCompleted {
		t.Fatalf("run status = %q, want completed", run.Status)
	}
	if f.fakeLLM.called != 0 {
		t.Errorf("ingest-only run called the classifier %d times", f.fakeLLM.called)
	}
	if run.PostsFetched != 1 {
		t.Errorf("posts fetched = %d, want 1", run.PostsFetched)
	}
}
