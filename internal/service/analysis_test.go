package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"gorm.io/gorm"
)

type analysisFixture struct {
	db       *gorm.DB
	svc      *AnalysisService
	comments *repository.CommentRepository
	analyses *repository.AnalysisRepository
	fake     *fakeClassifier
	conn     *domain.Connection
	post     *domain.Post
}

func newAnalysisFixture(t *testing.T, batchSize int) *analysisFixture {
	t.Helper()
	db := newTestDB(t)
	comments := repository.NewCommentRepository(db)
	analyses := repository.NewAnalysisRepository(db)
	fake := &fakeClassifier{results: map[string]ClassifierResult{}}
	svc := NewAnalysisService(comments, analyses, fake, "v1", batchSize, testLogger())
	conn := seedConnection(t, db)
	return &analysisFixture{
		db:       db,
		svc:      svc,
		comments: comments,
		analyses: analyses,
		fake:     fake,
		conn:     conn,
		post:     seedPost(t, db, conn, "p1"),
	}
}

func TestAnalyzePostPersistsResults(t *testing.T) {
	f := newAnalysisFixture(t, 30)
	ctx := context.Background()

	seedComment(t, f.db, f.post, "c1", "great product", 5, domain.CommentStatusPending)
	seedComment(t, f.db, f.post, "c2", "meh", 0, domain.CommentStatusPending)
	f.fake.results["great product"] = result(9, 0.95, "joy")
	f.fake.results["meh"] = result(4, 0.8)

	stats, err := f.svc.AnalyzePost(ctx, f.post.ID)
	if err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}
	if stats.Analyzed != 2 || stats.Errors != 0 || stats.LLMCalls != 1 {
		t.Fatalf("stats = %+v, want analyzed=2 errors=0 llm_calls=1", stats)
	}

	var processed int64
	f.db.Model(&domain.Comment{}).Where("status = ?", domain.CommentStatusProcessed).Count(&processed)
	if processed != 2 {
		t.Errorf("processed comments = %d, want 2", processed)
	}

	var rows int64
	f.db.Model(&domain.CommentAnalysis{}).Count(&rows)
	if rows != 2 {
		t.Errorf("analysis rows = %d, want 2", rows)
	}
}

func TestAnalyzePostSkipsProcessedComments(t *testing.T) {
	f := newAnalysisFixture(t, 30)
	ctx := context.Background()

	seedComment(t, f.db, f.post, "c1", "done already", 0, domain.CommentStatusProcessed)
	seedComment(t, f.db, f.post, "c2", "failed before", 0, domain.CommentStatusError)

	stats, err := f.svc.AnalyzePost(ctx, f.post.ID)
	if err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}
	if f.fake.called != 0 {
		t.Errorf("classifier called %d times for non-pending comments, want 0", f.fake.called)
	}
	if stats.Analyzed != 0 {
		t.Errorf("analyzed = %d, want 0", stats.Analyzed)
	}
}

func TestAnalyzePostRepairsStalePending(t *testing.T) {
	f := newAnalysisFixture(t, 30)
	ctx := context.Background()

	// Simulates a run that crashed after writing the analysis row but before
	// flipping the comment status.
	comment := seedComment(t, f.db, f.post, "c1", "stale", 0, domain.CommentStatusPending)
	conf := 0.9
	score := 7.0
	if err := f.db.Create(&domain.CommentAnalysis{
		ID:            uuid.New().String(),
		CommentID:     comment.ID,
		Model:         "fake-model",
		PromptVersion: "v1",
		Score:         &score,
		Confidence:    &conf,
		AnalyzedAt:    time.Now().UTC(),
	}).Error; err != nil {
		t.Fatalf("failed to seed analysis: %v", err)
	}

	if _, err := f.svc.AnalyzePost(ctx, f.post.ID); err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}
	if f.fake.called != 0 {
		t.Errorf("repair pass must not call the classifier, got %d calls", f.fake.called)
	}

	updated, err := f.comments.GetByID(ctx, comment.ID)
	if err != nil {
		t.Fatalf("comment lookup failed: %v", err)
	}
	if updated.Status != domain.CommentStatusProcessed {
		t.Errorf("repaired comment status = %q, want processed", updated.Status)
	}
}

func TestAnalyzePostRepairKeepsLowConfidenceResult(t *testing.T) {
	f := newAnalysisFixture(t, 30)
	ctx := context.Background()

	// The interrupted run already persisted a zero-confidence result; repair
	// settles the comment as processed without second-guessing the row.
	comment := seedComment(t, f.db, f.post, "c1", "stale", 0, domain.CommentStatusPending)
	conf := 0.0
	if err := f.db.Create(&domain.CommentAnalysis{
		ID:            uuid.New().String(),
		CommentID:     comment.ID,
		Model:         "fake-model",
		PromptVersion: "v1",
		Confidence:    &conf,
		Summary:       "could not determine sentiment",
		AnalyzedAt:    time.Now().UTC(),
	}).Error; err != nil {
		t.Fatalf("failed to seed analysis: %v", err)
	}

	if _, err := f.svc.AnalyzePost(ctx, f.post.ID); err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}
	if f.fake.called != 0 {
		t.Errorf("repair pass must not call the classifier, got %d calls", f.fake.called)
	}

	updated, err := f.comments.GetByID(ctx, comment.ID)
	if err != nil {
		t.Fatalf("comment lookup failed: %v", err)
	}
	if updated.Status != domain.CommentStatusProcessed {
		t.Errorf("repaired comment status = %q, want processed", updated.Status)
	}
}

func TestAnalyzePostChunksByBatchSize(t *testing.T) {
	f := newAnalysisFixture(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedComment(t, f.db, f.post, fmt.Sprintf("c%d", i), "text", i, domain.CommentStatusPending)
	}

	stats, err := f.svc.AnalyzePost(ctx, f.post.ID)
	if err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}
	if stats.LLMCalls != 3 {
		t.Errorf("llm calls = %d, want 3 for 5 comments with batch size 2", stats.LLMCalls)
	}
	if len(f.fake.batches) != 3 || len(f.fake.batches[2]) != 1 {
		t.Errorf("unexpected batch shapes: %d batches", len(f.fake.batches))
	}

	// Higher-liked comments must come first.
	firstBatch := f.fake.batches[0]
	var first domain.Comment
	if err := f.db.First(&first, "id = ?", firstBatch[0].ID).Error; err != nil {
		t.Fatalf("comment lookup failed: %v", err)
	}
	if first.LikeCount != 4 {
		t.Errorf("first analyzed comment has %d likes, want the most liked (4)", first.LikeCount)
	}
}

func TestAnalyzePostLowConfidenceMarksError(t *testing.T) {
	f := newAnalysisFixture(t, 30)
	ctx := context.Background()

	comment := seedComment(t, f.db, f.post, "c1", "garbled", 0, domain.CommentStatusPending)
	lowConf := result(0, 0)
	lowConf.Summary = "could not determine sentiment"
	f.fake.results["garbled"] = lowConf

	stats, err := f.svc.AnalyzePost(ctx, f.post.ID)
	if err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}
	if stats.Analyzed != 1 || stats.Errors != 1 {
		t.Fatalf("stats = %+v, want analyzed=1 errors=1", stats)
	}

	updated, _ := f.comments.GetByID(ctx, comment.ID)
	if updated.Status != domain.CommentStatusError {
		t.Errorf("status = %q, want error", updated.Status)
	}
	if updated.LastError == "" {
		t.Error("last_error should carry the classifier summary")
	}
}

func TestAnalyzePostChunkFailureIsIsolated(t *testing.T) {
	f := newAnalysisFixture(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		seedComment(t, f.db, f.post, fmt.Sprintf("c%d", i), fmt.Sprintf("text %d", i), 4-i, domain.CommentStatusPending)
	}
	f.fake.err = errors.New("model overloaded")
	f.fake.errOnce = true

	stats, err := f.svc.AnalyzePost(ctx, f.post.ID)
	if err != nil {
		t.Fatalf("AnalyzePost failed: %v", err)
	}

	// First chunk of 2 failed, second chunk of 2 succeeded.
	if stats.Analyzed != 2 {
		t.Errorf("analyzed = %d, want 2", stats.Analyzed)
	}
	if stats.Errors != 2 {
		t.Errorf("errors = %d, want 2 from the failed chunk", stats.Errors)
	}
	if stats.LLMCalls != 1 {
		t.Errorf("llm calls = %d, want 1 successful call", stats.LLMCalls)
	}

	var errored int64
	f.db.Model(&domain.Comment{}).Where("status = ?", domain.CommentStatusError).Count(&errored)
	if errored != 2 {
		t.Errorf("errored comments = %d, want 2", errored)
	}
	var processed int64
	f.db.Model(&domain.Comment{}).Where("status = ?", domain.CommentStatusProcessed).Count(&processed)
	if processed != 2 {
		t.Errorf("processed comments = %d, want 2", processed)
	}
}

func TestAnalyzePostReanalysisUpsertsRow(t *testing.T) {
	f := newAnalysisFixture(t, 30)
	ctx := context.Background()

	comment := seedComment(t, f.db, f.post, "c1", "changed my mind", 0, domain.CommentStatusPending)
	f.fake.results["changed my mind"] = result(3, 0.9)

	if _, err := f.svc.AnalyzePost(ctx, f.post.ID); err != nil {
		t.Fatalf("first AnalyzePost failed: %v", err)
	}

	// A pending comment with an existing version row is settled by the repair
	// pass; either way exactly one row per version must remain.
	if err := f.comments.UpdateStatus(ctx, comment.ID, domain.CommentStatusPending, ""); err != nil {
		t.Fatalf("failed to reset status: %v", err)
	}

	if _, err := f.svc.AnalyzePost(ctx, f.post.ID); err != nil {
		t.Fatalf("second AnalyzePost failed: %v", err)
	}

	var rows int64
	f.db.Model(&domain.CommentAnalysis{}).Where("comment_id = ?", comment.ID).Count(&rows)
	if rows != 1 {
		t.Errorf("analysis rows = %d, want exactly 1 per version", rows)
	}
}

func TestAnalyzePostCancellationStopsBetweenChunks(t *testing.T) {
	f := newAnalysisFixture(t, 1)

	for i := 0; i < 3; i++ {
		seedComment(t, f.db, f.post, fmt.Sprintf("c%d", i), "text", 0, domain.CommentStatusPending)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := f.svc.AnalyzePost(ctx, f.post.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if stats.Analyzed != 0 {
		t.Errorf("analyzed = %d before first chunk on cancelled context, want 0", stats.Analyzed)
	}
}
