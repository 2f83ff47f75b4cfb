package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bryan-buckman/bulletin/internal/model"
)

// Stage names the pipeline step where a failure happened.
type Stage string

const (
	StageConfig    Stage = "config"
	StageFetch     Stage = "fetch"
	StageEnvelope  Stage = "envelope"
	StageDecode    Stage = "decode"
	StageNormalize Stage = "normalize"
	StagePersist   Stage = "persist"
	StageCancelled Stage = "cancelled"
)

// batchRecord is the Failure.Record of a failure affecting the whole run.
const batchRecord = "batch"

// Failure is one failed record, or the run itself.
type Failure struct {
	Record string `json:"record"`
	Stage  Stage  `json:"stage"`
	Cause  string `json:"cause"`
	Err    error  `json:"-"`
}

// BatchReport summarizes one ingest run. Err is set when the run failed
// before any record could be attempted.
type BatchReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Failures   []Failure `json:"failures"`
	Err        error     `json:"-"`
}

// OK reports whether the batch itself was fetched and parsed.
func (r *BatchReport) OK() bool { return r.Err == nil }

// MarshalJSON adds the batch error as a string.
func (r BatchReport) MarshalJSON() ([]byte, error) {
	type plain BatchReport
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	if out.Failures == nil {
		out.Failures = []Failure{}
	}
	return json.Marshal(out)
}

func (r *BatchReport) failBatch(stage Stage, err error) {
	r.Err = err
	r.Failed = 1
	r.Failures = append(r.Failures, Failure{Record: batchRecord, Stage: stage, Cause: err.Error(), Err: err})
}

func (r *BatchReport) failRecord(record string, stage Stage, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{Record: record, Stage: stage, Cause: err.Error(), Err: err})
}

// Fetcher retrieves one batch from the news API.
type Fetcher interface {
	Fetch(ctx context.Context) FetchResult
}

// ArticleStore is the storage the ingester writes to.
type ArticleStore interface {
	UpsertArticle(ctx context.Context, a *model.Article) (created bool, err error)
}

// Ingester runs the fetch, normalize and upsert pipeline.
type Ingester struct {
	fetcher    Fetcher
	normalizer *Normalizer
	store      ArticleStore
	logger     *zap.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewIngester wires an ingester. A nil logger discards output.
func NewIngester(f Fetcher, n *Normalizer, store ArticleStore, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		fetcher:    f,
		normalizer: n,
		store:      store,
		logger:     logger.Named("ingest"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Ingest fetches the latest batch and upserts every record in order. A bad
// record is reported and skipped. Concurrent calls run one after another.
// Ingest never panics and never returns an error outside the report.
func (in *Ingester) Ingest(ctx context.Context) *BatchReport {
	in.mu.Lock()
	defer in.mu.Unlock()

	report := &BatchReport{StartedAt: in.now()}
	defer func() {
		report.FinishedAt = in.now()
		observe(report)
		in.logReport(report)
	}()

	res := in.safeFetch(ctx)
	if !res.OK() {
		err := res.Err
		if err == nil {
			err = &TransportError{StatusCode: res.StatusCode, Body: res.Body}
		}
		stage := StageFetch
		if errors.Is(err, ErrMissingAPIKey) {
			stage = StageConfig
		}
		report.failBatch(stage, err)
		return report
	}

	records, err := parseEnvelope(res.Body)
	if err != nil {
		report.failBatch(StageEnvelope, err)
		return report
	}

	for i, msg := range records {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(records); j++ {
				report.Attempted++
				report.failRecord(identifyUndecodable(records[j], j), StageCancelled, err)
			}
			break
		}
		report.Attempted++
		in.ingestRecord(ctx, i, msg, report)
	}
	return report
}

func (in *Ingester) safeFetch(ctx context.Context) (res FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = FetchResult{Err: &TransportError{Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	return in.fetcher.Fetch(ctx)
}

func (in *Ingester) ingestRecord(ctx context.Context, index int, msg json.RawMessage, report *BatchReport) {
	record := identifyUndecodable(msg, index)
	stage := StageDecode
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			in.logger.Error("record panicked", zap.String("record", record), zap.String("stage", string(stage)), zap.Any("panic", r))
			report.failRecord(record, stage, err)
		}
	}()

	raw, err := decodeRecord(msg)
	if err != nil {
		in.recordFailure(report, record, stage, &NormalizationError{Record: raw, Err: err})
		return
	}
	record = raw.Identifier(index)

	stage = StageNormalize
	article, err := in.normalizer.Normalize(raw)
	if err != nil {
		in.recordFailure(report, record, stage, err)
		return
	}

	stage = StagePersist
	created, err := in.store.UpsertArticle(ctx, article)
	if err != nil {
		in.recordFailure(report, record, stage, &PersistenceError{Record: record, Err: err})
		return
	}

	report.Succeeded++
	if created {
		report.Created++
	} else {
		report.Updated++
	}
	in.logger.Debug("record stored", zap.String("record", record), zap.Bool("created", created), zap.String("slug", article.Slug))
}

func (in *Ingester) recordFailure(report *BatchReport, record string, stage Stage, err error) {
	in.logger.Warn("record skipped", zap.String("record", record), zap.String("stage", string(stage)), zap.Error(err))
	report.failRecord(record, stage, err)
}

func (in *Ingester) logReport(r *BatchReport) {
	fields := []zap.Field{
		zap.Int("attempted", r.Attempted),
		zap.Int("succeeded", r.Succeeded),
		zap.Int("failed", r.Failed),
		zap.Int("created", r.Created),
		zap.Int("updated", r.Updated),
		zap.Duration("duration", r.FinishedAt.Sub(r.StartedAt)),
	}
	if r.Err != nil {
		stage := ""
		if len(r.Failures) > 0 {
			stage = string(r.Failures[0].Stage)
		}
		in.logger.Error("ingest failed", append(fields, zap.String("stage", stage), zap.Error(r.Err))...)
		return
	}
	in.logger.Info("ingest finished", fields...)
}
