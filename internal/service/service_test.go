package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bookstore/services/reviews/internal/auth"
	"github.com/bookstore/services/reviews/internal/db"
	"github.com/bookstore/services/reviews/internal/db/dbtest"
	"github.com/bookstore/services/reviews/internal/rating"
	"github.com/bookstore/services/reviews/internal/repo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type emitted struct {
	eventType string
	payload   map[string]interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(_ context.Context, eventType string, payload map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{eventType: eventType, payload: payload})
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	types := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		types = append(types, ev.eventType)
	}
	return types
}

type mutationCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *mutationCounter) ReviewMutation(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[operation+"/"+outcome]++
}

func (m *mutationCounter) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

type failingRecomputer struct{}

func (failingRecomputer) Recompute(context.Context, string) (rating.Summary, error) {
	return rating.Summary{}, errors.New("database is locked")
}

type fixture struct {
	database *db.DB
	bookRepo *repo.BookRepository
	books    *BookService
	reviews  *ReviewService
	users    *UserService
	emitter  *recordingEmitter
	counter  *mutationCounter
}

func setup(t *testing.T) *fixture {
	t.Helper()

	database := dbtest.Open(t)
	log := zap.NewNop()
	bookRepo := repo.NewBookRepository(database, log)
	reviewRepo := repo.NewReviewRepository(database, log)
	aggregator := rating.NewAggregator(database, bookRepo, reviewRepo, log)

	f := &fixture{
		database: database,
		bookRepo: bookRepo,
		emitter:  &recordingEmitter{},
		counter:  &mutationCounter{},
	}
	f.books = NewBookService(database, bookRepo, reviewRepo, f.emitter, log)
	f.reviews = NewReviewService(database, bookRepo, reviewRepo, aggregator, log,
		WithEvents(f.emitter),
		WithMutationRecorder(f.counter),
	)
	f.users = NewUserService(repo.NewUserRepository(database, log), auth.NewTokenManager("test-secret", time.Hour, "bookreview"), log)
	return f
}

func (f *fixture) user(t *testing.T) string {
	t.Helper()
	return dbtest.SeedUser(t, f.database, "u-"+uuid.NewString()[:8])
}

func (f *fixture) book(t *testing.T, ownerID string) *db.Book {
	t.Helper()
	book, err := f.books.CreateBook(context.Background(), ownerID, CreateBookRequest{
		Title:       "The Left Hand of Darkness",
		Author:      "Ursula K. Le Guin",
		Genre:       "Science Fiction",
		Description: "An envoy on the planet Gethen.",
	})
	require.NoError(t, err)
	return book
}

func (f *fixture) review(t *testing.T, bookID, userID string, stars int) *db.Review {
	t.Helper()
	result, err := f.reviews.AddReview(context.Background(), bookID, userID, AddReviewRequest{
		Rating:  stars,
		Comment: "Worth reading.",
	})
	require.NoError(t, err)
	return result.Review
}

func (f *fixture) reload(t *testing.T, bookID string) *db.Book {
	t.Helper()
	book, err := f.bookRepo.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	return book
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
