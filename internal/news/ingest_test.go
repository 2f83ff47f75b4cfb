package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/bulletin/internal/database"
	"github.com/bryan-buckman/bulletin/internal/model"
)

type staticFetcher struct {
	res   FetchResult
	calls int32
}

func (f *staticFetcher) Fetch(ctx context.Context) FetchResult {
	atomic.AddInt32(&f.calls, 1)
	return f.res
}

func body(records ...string) FetchResult {
	return FetchResult{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"status":"success","totalResults":1,"results":[` + strings.Join(records, ",") + `]}`),
	}
}

func record(id, title, content string) string {
	return fmt.Sprintf(`{"article_id":%q,"title":%q,"content":%q,"source_id":"src","source_priority":10,"category":["top"],"language":"en","pubDate":"2024-01-02 03:04:05"}`, id, title, content)
}

type memStore struct {
	mu       sync.Mutex
	articles map[string]*model.Article
	err      error
	panicOn  string
}

func (s *memStore) UpsertArticle(ctx context.Context, a *model.Article) (bool, error) {
	if a.Title == s.panicOn {
		panic("boom")
	}
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.articles == nil {
		s.articles = map[string]*model.Article{}
	}
	_, exists := s.articles[a.Title]
	s.articles[a.Title] = a
	return !exists, nil
}

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestIngester(f Fetcher, store ArticleStore) *Ingester {
	return NewIngester(f, testNormalizer(), store, nil)
}

func TestIngestEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body(record("p-1", "Counting Article", "One. Two. Three. Four. Five. Six.")).Body)
	}))
	defer srv.Close()

	db := newTestStore(t)
	client := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"}, nil)
	report := newTestIngester(client, db).Ingest(context.Background())

	require.True(t, report.OK(), "err: %v", report.Err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.Failures)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	page, err := db.ListPublished(context.Background(), model.ArticleQuery{})
	require.NoError(t, err)
	require.Len(t, page.Articles, 1)
	a := page.Articles[0]
	assert.Equal(t, "One. Two. Three. Four. Five.\n\nSix.", a.Content)
	assert.Equal(t, model.StatusPublished, a.Status)
	assert.Equal(t, "counting-article-0badcafe", a.Slug)
}

func TestIngestIsIdempotent(t *testing.T) {
	db := newTestStore(t)
	f := &staticFetcher{res: body(record("", "Same Title", "First version."))}
	in := newTestIngester(f, db)
	in.normalizer.slugSuffix = randomSuffix

	first := in.Ingest(context.Background())
	require.True(t, first.OK())
	assert.Equal(t, 1, first.Created)

	before, err := db.ListPublished(context.Background(), model.ArticleQuery{})
	require.NoError(t, err)
	require.Len(t, before.Articles, 1)

	f.res = body(record("", "Same Title", "Second version."))
	second := in.Ingest(context.Background())
	require.True(t, second.OK())
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)

	after, err := db.ListPublished(context.Background(), model.ArticleQuery{})
	require.NoError(t, err)
	require.Len(t, after.Articles, 1)
	assert.Equal(t, "Second version.", after.Articles[0].Content)
	assert.Equal(t, before.Articles[0].Slug, after.Articles[0].Slug)
	assert.Equal(t, before.Articles[0].ID, after.Articles[0].ID)
}

func TestIngestIsolatesBadRecords(t *testing.T) {
	records := []string{
		record("p-1", "First", "a."),
		record("p-2", "Second", "b."),
		`{"article_id":"p-3","title":"Third","source_priority":1,"language":"en"}`,
		record("p-4", "Fourth", "d."),
		`{"article_id":"p-5","title":["not","a","string"]}`,
		`{"article_id":"p-6","title":"Sixth","source_id":"s","source_priority":1,"language":"en","pubDate":"yesterday"}`,
		record("p-7", "Seventh", "g."),
	}
	store := &memStore{}
	report := newTestIngester(&staticFetcher{res: body(records...)}, store).Ingest(context.Background())

	require.True(t, report.OK())
	assert.Equal(t, 7, report.Attempted)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 3, report.Failed)
	assert.Len(t, store.articles, 4)

	require.Len(t, report.Failures, 3)
	assert.Equal(t, Failure{Record: "p-3", Stage: StageNormalize}, strip(report.Failures[0]))
	assert.Equal(t, Failure{Record: "p-5", Stage: StageDecode}, strip(report.Failures[1]))
	assert.Equal(t, Failure{Record: "p-6", Stage: StageNormalize}, strip(report.Failures[2]))
	assert.Contains(t, report.Failures[0].Cause, "source_id")

	var nerr *NormalizationError
	assert.True(t, errors.As(report.Failures[0].Err, &nerr))
	assert.True(t, errors.As(report.Failures[1].Err, &nerr))
}

func strip(f Failure) Failure {
	return Failure{Record: f.Record, Stage: f.Stage}
}

func TestIngestPersistenceError(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	report := newTestIngester(&staticFetcher{res: body(record("p-1", "A", "x."), record("p-2", "B", "y."))}, store).Ingest(context.Background())

	require.True(t, report.OK())
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, StagePersist, report.Failures[0].Stage)

	var perr *PersistenceError
	require.True(t, errors.As(report.Failures[0].Err, &perr))
	assert.Equal(t, "p-1", perr.Record)
}

func TestIngestRecoversPanics(t *testing.T) {
	store := &memStore{panicOn: "Explodes"}
	report := newTestIngester(&staticFetcher{res: body(record("p-1", "Explodes", "x."), record("p-2", "Fine", "y."))}, store).Ingest(context.Background())

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StagePersist, report.Failures[0].Stage)
	assert.Contains(t, report.Failures[0].Cause, "boom")
}

func TestIngestUnavailableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	db := newTestStore(t)
	failedBefore := testutil.ToFloat64(ingestRuns.WithLabelValues("failed"))

	report := newTestIngester(NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"}, nil), db).Ingest(context.Background())

	assert.False(t, report.OK())
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageFetch, report.Failures[0].Stage)
	var terr *TransportError
	assert.True(t, errors.As(report.Err, &terr))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(ingestRuns.WithLabelValues("failed")))

	page, err := db.ListPublished(context.Background(), model.ArticleQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestIngestMissingAPIKey(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	report := newTestIngester(NewClient(ClientConfig{BaseURL: srv.URL}, nil), &memStore{}).Ingest(context.Background())

	assert.ErrorIs(t, report.Err, ErrMissingAPIKey)
	assert.Equal(t, 0, report.Attempted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, StageConfig, report.Failures[0].Stage)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestIngestBadEnvelope(t *testing.T) {
	for _, b := range []string{`<html>oops</html>`, `{"status":"success"}`} {
		f := &staticFetcher{res: FetchResult{StatusCode: http.StatusOK, Body: []byte(b)}}
		report := newTestIngester(f, &memStore{}).Ingest(context.Background())

		assert.False(t, report.OK(), b)
		assert.Equal(t, 0, report.Attempted)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, StageEnvelope, report.Failures[0].Stage)
		var eerr *EnvelopeError
		assert.True(t, errors.As(report.Err, &eerr))
	}
}

func TestIngestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &memStore{}
	f := &staticFetcher{res: body(record("p-1", "A", "x."), record("p-2", "B", "y."))}
	report := newTestIngester(f, store).Ingest(ctx)

	assert.True(t, report.OK())
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, store.articles)
	for _, fl := range report.Failures {
		assert.Equal(t, StageCancelled, fl.Stage)
		assert.ErrorIs(t, fl.Err, context.Canceled)
	}
}

func TestIngestSerializesRuns(t *testing.T) {
	store := &memStore{}
	in := newTestIngester(&staticFetcher{res: body(record("p-1", "A", "x."))}, store)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in.Ingest(context.Background())
		}()
	}
	wg.Wait()
	assert.Len(t, store.articles, 1)
}

func TestBatchReportJSON(t *testing.T) {
	ok, err := json.Marshal(&BatchReport{Attempted: 1, Succeeded: 1})
	require.NoError(t, err)
	assert.Contains(t, string(ok), `"failures":[]`)
	assert.NotContains(t, string(ok), `"error"`)

	r := &BatchReport{}
	r.failBatch(StageFetch, errors.New("nope"))
	failed, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(failed), `"error":"nope"`)
	assert.Contains(t, string(failed), `"stage":"fetch"`)
}
