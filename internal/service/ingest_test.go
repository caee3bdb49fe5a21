package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"gorm.io/gorm"
)

func newIngestFixture(t *testing.T) (*gorm.DB, *IngestService, *repository.PostRepository, *repository.CommentRepository, *domain.Connection) {
	t.Helper()
	db := newTestDB(t)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	svc := NewIngestService(posts, comments, repository.NewAnalysisRepository(db), nil, testLogger())
	return db, svc, posts, comments, seedConnection(t, db)
}

func fetchedFixture() []FetchedPost {
	published := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return []FetchedPost{
		{
			Post: source.PostItem{
				PlatformPostID: "p1",
				Caption:        "launch day",
				LikeCount:      100,
				PublishedAt:    &published,
			},
			Comments: []source.CommentItem{
				{PlatformCommentID: "c1", Text: "love it", LikeCount: 10},
				{PlatformCommentID: "c2", Text: "not for me", LikeCount: 1},
			},
		},
		{
			Post: source.PostItem{PlatformPostID: "p2", Caption: "teaser"},
			Comments: []source.CommentItem{
				{PlatformCommentID: "c1", Text: "when is it out"},
			},
		},
	}
}

func TestMergeCreatesPostsAndComments(t *testing.T) {
	_, svc, posts, comments, conn := newIngestFixture(t)
	ctx := context.Background()

	stats := &MergeStats{}
	svc.Merge(ctx, conn, fetchedFixture(), stats)

	if stats.PostsCreated != 2 || stats.CommentsCreated != 3 {
		t.Fatalf("expected 2 posts and 3 comments created, got %d and %d", stats.PostsCreated, stats.CommentsCreated)
	}
	if len(stats.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", stats.Errors)
	}

	post, err := posts.GetByPlatformID(ctx, conn.ID, "p1")
	if err != nil {
		t.Fatalf("post p1 not stored: %v", err)
	}
	comment, err := comments.GetByPlatformID(ctx, post.ID, "c1")
	if err != nil {
		t.Fatalf("comment c1 not stored: %v", err)
	}
	if comment.Status != domain.CommentStatusPending {
		t.Errorf("new comment status = %q, want pending", comment.Status)
	}
	if comment.TextHash == "" || comment.TextClean != "love it" {
		t.Errorf("comment text fields not normalized: clean=%q hash=%q", comment.TextClean, comment.TextHash)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	_, svc, posts, comments, conn := newIngestFixture(t)
	ctx := context.Background()

	first := &MergeStats{}
	svc.Merge(ctx, conn, fetchedFixture(), first)

	second := &MergeStats{}
	svc.Merge(ctx, conn, fetchedFixture(), second)

	if second.PostsCreated != 0 || second.CommentsCreated != 0 {
		t.Fatalf("re-merge created records: posts=%d comments=%d", second.PostsCreated, second.CommentsCreated)
	}
	if second.PostsUpdated != 2 || second.CommentsUpdated != 3 {
		t.Fatalf("re-merge updates: posts=%d comments=%d, want 2 and 3", second.PostsUpdated, second.CommentsUpdated)
	}

	post, err := posts.GetByPlatformID(ctx, conn.ID, "p1")
	if err != nil {
		t.Fatalf("post lookup failed: %v", err)
	}
	count, err := comments.CountByPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("comment count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("post p1 has %d comments after re-merge, want 2", count)
	}
}

func TestMergeRefreshesEngagementCounts(t *testing.T) {
	_, svc, posts, _, conn := newIngestFixture(t)
	ctx := context.Background()

	svc.Merge(ctx, conn, fetchedFixture(), &MergeStats{})

	updated := fetchedFixture()
	updated[0].Post.LikeCount = 250
	svc.Merge(ctx, conn, updated, &MergeStats{})

	post, err := posts.GetByPlatformID(ctx, conn.ID, "p1")
	if err != nil {
		t.Fatalf("post lookup failed: %v", err)
	}
	if post.LikeCount != 250 {
		t.Errorf("post like count = %d, want 250", post.LikeCount)
	}
}

func TestMergePreservesCommentStatus(t *testing.T) {
	_, svc, posts, comments, conn := newIngestFixture(t)
	ctx := context.Background()

	svc.Merge(ctx, conn, fetchedFixture(), &MergeStats{})

	post, _ := posts.GetByPlatformID(ctx, conn.ID, "p1")
	comment, _ := comments.GetByPlatformID(ctx, post.ID, "c1")
	if err := comments.UpdateStatus(ctx, comment.ID, domain.CommentStatusProcessed, ""); err != nil {
		t.Fatalf("failed to mark comment processed: %v", err)
	}

	svc.Merge(ctx, conn, fetchedFixture(), &MergeStats{})

	comment, _ = comments.GetByPlatformID(ctx, post.ID, "c1")
	if comment.Status != domain.CommentStatusProcessed {
		t.Errorf("re-merge reset status to %q, want processed", comment.Status)
	}
}

func TestMergeResetsStatusOnTextChange(t *testing.T) {
	db, svc, posts, comments, conn := newIngestFixture(t)
	ctx := context.Background()

	svc.Merge(ctx, conn, fetchedFixture(), &MergeStats{})

	post, _ := posts.GetByPlatformID(ctx, conn.ID, "p1")
	comment, _ := comments.GetByPlatformID(ctx, post.ID, "c1")
	if err := comments.UpdateStatus(ctx, comment.ID, domain.CommentStatusProcessed, ""); err != nil {
		t.Fatalf("failed to mark comment processed: %v", err)
	}

	// Stale analysis rows must go with the old text.
	conf := 0.9
	if err := db.Create(&domain.CommentAnalysis{
		ID:            "an-1",
		CommentID:     comment.ID,
		Model:         "fake-model",
		PromptVersion: "v1",
		Confidence:    &conf,
	}).Error; err != nil {
		t.Fatalf("failed to seed analysis: %v", err)
	}

	edited := fetchedFixture()
	edited[0].Comments[0].Text = "love it even more now"
	svc.Merge(ctx, conn, edited, &MergeStats{})

	comment, _ = comments.GetByPlatformID(ctx, post.ID, "c1")
	if comment.Status != domain.CommentStatusPending {
		t.Errorf("edited comment status = %q, want pending", comment.Status)
	}
	if comment.TextClean != "love it even more now" {
		t.Errorf("edited comment text not updated: %q", comment.TextClean)
	}

	var rows int64
	db.Model(&domain.CommentAnalysis{}).Where("comment_id = ?", comment.ID).Count(&rows)
	if rows != 0 {
		t.Errorf("stale analysis rows = %d, want 0 after text change", rows)
	}
}

func TestMergeSkipsCommentWithoutPlatformID(t *testing.T) {
	_, svc, _, _, conn := newIngestFixture(t)
	ctx := context.Background()

	fetched := []FetchedPost{{
		Post: source.PostItem{PlatformPostID: "p1"},
		Comments: []source.CommentItem{
			{PlatformCommentID: "", Text: "orphan"},
			{PlatformCommentID: "c1", Text: "kept"},
		},
	}}

	stats := &MergeStats{}
	svc.Merge(ctx, conn, fetched, stats)

	if stats.CommentsCreated != 1 {
		t.Errorf("comments created = %d, want 1", stats.CommentsCreated)
	}
	if len(stats.Errors) != 0 {
		t.Errorf("skipping an unidentifiable comment should not count as error, got %v", stats.Errors)
	}
}

func TestMergeRejectsPostWithoutPlatformID(t *testing.T) {
	_, svc, _, _, conn := newIngestFixture(t)

	stats := &MergeStats{}
	svc.Merge(context.Background(), conn, []FetchedPost{{Post: source.PostItem{PlatformPostID: ""}}}, stats)

	if stats.PostsCreated != 0 {
		t.Errorf("posts created = %d, want 0", stats.PostsCreated)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("expected one merge error, got %v", stats.Errors)
	}
}

func TestIngestConnectionSurfacesPostFetchFailure(t *testing.T) {
	_, svc, _, _, conn := newIngestFixture(t)

	adapter := &fakeAdapter{postsErr: errors.New("profile is private")}
	_, err := svc.IngestConnection(context.Background(), conn, adapter, nil)
	if err == nil {
		t.Fatal("expected error when post fetch fails")
	}
}

func TestIngestConnectionAbsorbsCommentFetchFailure(t *testing.T) {
	_, svc, posts, _, conn := newIngestFixture(t)

	adapter := &fakeAdapter{
		posts: []source.PostItem{
			{PlatformPostID: "p1"},
			{PlatformPostID: "p2"},
		},
		comments: map[string][]source.CommentItem{
			"p2": {{PlatformCommentID: "c1", Text: "fine"}},
		},
		commentsErr: map[string]error{"p1": errors.New("rate limited")},
	}

	stats, err := svc.IngestConnection(context.Background(), conn, adapter, nil)
	if err != nil {
		t.Fatalf("comment fetch failure must not fail ingest: %v", err)
	}
	if stats.PostsCreated != 2 {
		t.Errorf("posts created = %d, want 2", stats.PostsCreated)
	}
	if stats.CommentsCreated != 1 {
		t.Errorf("comments created = %d, want 1", stats.CommentsCreated)
	}
	if len(stats.Errors) != 1 {
		t.Errorf("expected one accumulated error, got %v", stats.Errors)
	}

	if _, err := posts.GetByPlatformID(context.Background(), conn.ID, "p1"); err != nil {
		t.Errorf("post with failed comments should still be stored: %v", err)
	}
}
