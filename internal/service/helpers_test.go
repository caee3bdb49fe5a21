package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/logger"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
	"github.com/vinialveslopesanjos/sentimenta/internal/source"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq int
var dbSeqMu sync.Mutex

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbSeqMu.Lock()
	dbSeq++
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", dbSeq)
	dbSeqMu.Unlock()

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

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "text"})
}

func seedConnection(t *testing.T, db *gorm.DB) *domain.Connection {
	t.Helper()
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
	return conn
}

func seedPost(t *testing.T, db *gorm.DB, conn *domain.Connection, platformPostID string) *domain.Post {
	t.Helper()
	post := &domain.Post{
		ID:             uuid.New().String(),
		ConnectionID:   conn.ID,
		Platform:       conn.Platform,
		PlatformPostID: platformPostID,
		FetchedAt:      time.Now().UTC(),
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("failed to seed post: %v", err)
	}
	return post
}

func seedComment(t *testing.T, db *gorm.DB, post *domain.Post, platformCommentID, text string, likes int, status domain.CommentStatus) *domain.Comment {
	t.Helper()
	comment := &domain.Comment{
		ID:                uuid.New().String(),
		PostID:            post.ID,
		ConnectionID:      post.ConnectionID,
		Platform:          post.Platform,
		PlatformCommentID: platformCommentID,
		TextOriginal:      text,
		TextClean:         text,
		LikeCount:         likes,
		Status:            status,
	}
	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("failed to seed comment: %v", err)
	}
	return comment
}

// fakeAdapter serves canned posts and comments, recording fetch calls.
type fakeAdapter struct {
	platform    string
	posts       []source.PostItem
	comments    map[string][]source.CommentItem
	postsErr    error
	commentsErr map[string]error
	fetches     int
}

func (a *fakeAdapter) Platform() string {
	if a.platform == "" {
		return "instagram"
	}
	return a.platform
}

func (a *fakeAdapter) FetchPosts(ctx context.Context, profile string, maxPosts int, since *time.Time) ([]source.PostItem, error) {
	a.fetches++
	if a.postsErr != nil {
		return nil, a.postsErr
	}
	return a.posts, nil
}

func (a *fakeAdapter) FetchComments(ctx context.Context, platformPostID string, maxComments int) ([]source.CommentItem, error) {
	if err := a.commentsErr[platformPostID]; err != nil {
		return nil, err
	}
	return a.comments[platformPostID], nil
}

// fakeClassifier returns scripted results keyed by comment text, recording
// every batch it receives. Unknown texts get a confident neutral result.
type fakeClassifier struct {
	mu      sync.Mutex
	batches [][]ClassifierInput
	results map[string]ClassifierResult
	err     error
	errOnce bool
	called  int
}

func (c *fakeClassifier) Model() string { return "fake-model" }

func (c *fakeClassifier) Classify(ctx context.Context, batch []ClassifierInput, promptVersion string) ([]ClassifierResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.called++
	c.batches = append(c.batches, batch)

	if c.err != nil {
		err := c.err
		if c.errOnce {
			c.err = nil
		}
		return nil, err
	}

	out := make([]ClassifierResult, 0, len(batch))
	for _, in := range batch {
		if res, ok := c.results[in.Text]; ok {
			res.CommentID = in.ID
			out = append(out, res)
			continue
		}
		score, conf := 5.0, 0.9
		out = append(out, ClassifierResult{
			CommentID:  in.ID,
			Score:      &score,
			Confidence: &conf,
		})
	}
	return out, nil
}

func result(score, confidence float64, emotions ...string) ClassifierResult {
	return ClassifierResult{
		Score:      &score,
		Confidence: &confidence,
		Emotions:   emotions,
	}
}

// spyInvalidator records dashboard invalidation calls.
type spyInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (s *spyInvalidator) InvalidateDashboard(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return nil
}

func (s *spyInvalidator) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}
