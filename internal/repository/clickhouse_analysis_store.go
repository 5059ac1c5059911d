package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"AlphaCrew/internal/domain/models"
	domrepo "AlphaCrew/internal/domain/repository"
	pkgch "AlphaCrew/pkg/clickhouse"
	applogger "AlphaCrew/pkg/logger"
)

// invocationChunk bounds the rows of one multi-VALUES insert.
const invocationChunk = 2000

// CHAnalysisStore archives analyses and agent invocations in ClickHouse.
type CHAnalysisStore struct {
	db          *sqlx.DB
	analyses    string
	invocations string
	l           *applogger.Logger
}

func NewCHAnalysisStore(ch *pkgch.Client) *CHAnalysisStore {
	return newCHAnalysisStore(ch.X(), ch.Database())
}

func newCHAnalysisStore(db *sqlx.DB, database string) *CHAnalysisStore {
	return &CHAnalysisStore{
		db:          db,
		analyses:    database + "." + pkgch.AnalysesTable,
		invocations: database + "." + pkgch.InvocationsTable,
	}
}

// SetLogger injects a structured logger.
func (s *CHAnalysisStore) SetLogger(l *applogger.Logger) { s.l = l }

type analysisRow struct {
	RequestID  string    `db:"request_id"`
	SecurityID string    `db:"security_id"`
	AsOf       time.Time `db:"as_of"`
	Stage      string    `db:"stage"`
	Action     string    `db:"action"`
	Score      float64   `db:"score"`
	Confidence float64   `db:"confidence"`
	ErrorKind  string    `db:"error_kind"`
	Error      string    `db:"error"`
	Payload    string    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
}

const analysisInsert = `INSERT INTO %s (request_id, security_id, as_of, stage, action, score, confidence, error_kind, error, payload, created_at)
VALUES (:request_id, :security_id, :as_of, :stage, :action, :score, :confidence, :error_kind, :error, :payload, :created_at)`

func (s *CHAnalysisStore) insertAnalysis(ctx context.Context, row analysisRow) error {
	start := time.Now()
	q, args, err := sqlx.Named(fmt.Sprintf(analysisInsert, s.analyses), row)
	if err != nil {
		return fmt.Errorf("bind analysis: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		s.logError("clickhouse save_analysis error", err, applogger.String("request_id", row.RequestID))
		return fmt.Errorf("save analysis: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse save_analysis ok",
			applogger.String("request_id", row.RequestID),
			applogger.String("stage", row.Stage),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHAnalysisStore) SaveResult(ctx context.Context, res *models.AnalysisResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.insertAnalysis(ctx, analysisRow{
		RequestID:  res.RequestID,
		SecurityID: res.SecurityID,
		AsOf:       res.AsOf,
		Stage:      string(models.StageDone),
		Action:     string(res.Recommendation.Action),
		Score:      res.Recommendation.Score,
		Confidence: res.Recommendation.Confidence,
		Payload:    string(payload),
		CreatedAt:  res.CompletedAt,
	})
}

func (s *CHAnalysisStore) SaveFailure(ctx context.Context, aerr *models.AnalysisError) error {
	msg := ""
	if aerr.Err != nil {
		msg = aerr.Err.Error()
	}
	payload, err := json.Marshal(struct {
		*models.AnalysisError
		Error string `json:"error"`
	}{aerr, msg})
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	return s.insertAnalysis(ctx, analysisRow{
		RequestID:  aerr.RequestID,
		SecurityID: aerr.SecurityID,
		AsOf:       aerr.AsOf,
		Stage:      string(aerr.Stage),
		ErrorKind:  models.ErrorKind(aerr.Err),
		Error:      msg,
		Payload:    string(payload),
		CreatedAt:  time.Now().UTC(),
	})
}

// SaveInvocations writes records with multi-row inserts.
func (s *CHAnalysisStore) SaveInvocations(ctx context.Context, recs []models.AgentInvocationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for start := 0; start < len(recs); start += invocationChunk {
		end := start + invocationChunk
		if end > len(recs) {
			end = len(recs)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*10)
		for _, r := range recs[start:end] {
			if r.Producer == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.Producer,
				r.RequestID,
				r.SecurityID,
				r.StartedAt,
				r.EndedAt,
				string(r.Outcome),
				r.ErrorKind,
				r.Score,
				r.Confidence,
				string(r.PayloadSize),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (producer, request_id, security_id, started_at, ended_at, outcome, error_kind, score, confidence, payload_size) VALUES %s",
			s.invocations, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.logError("clickhouse save_invocations error", err, applogger.Int("rows", len(values)))
			return fmt.Errorf("save invocations: %w", err)
		}
	}
	return nil
}

// RecentResults returns the newest analyses first; an empty securityID matches all.
func (s *CHAnalysisStore) RecentResults(ctx context.Context, securityID string, limit int) ([]domrepo.AnalysisSummary, error) {
	q := fmt.Sprintf(`SELECT request_id, security_id, as_of, stage, action, score, confidence, error_kind, error, payload, created_at
FROM %s
WHERE (? = '' OR security_id = ?)
ORDER BY created_at DESC
LIMIT ?`, s.analyses)

	var rows []analysisRow
	if err := s.db.SelectContext(ctx, &rows, q, securityID, securityID, limit); err != nil {
		s.logError("clickhouse recent_results error", err, applogger.String("security_id", securityID))
		return nil, fmt.Errorf("recent results: %w", err)
	}
	out := make([]domrepo.AnalysisSummary, len(rows))
	for i, r := range rows {
		out[i] = domrepo.AnalysisSummary{
			RequestID:  r.RequestID,
			SecurityID: r.SecurityID,
			AsOf:       r.AsOf,
			Stage:      r.Stage,
			Action:     r.Action,
			Confidence: r.Confidence,
			Score:      r.Score,
			Error:      r.Error,
			CreatedAt:  r.CreatedAt,
		}
	}
	return out, nil
}

type invocationRow struct {
	Producer    string    `db:"producer"`
	RequestID   string    `db:"request_id"`
	SecurityID  string    `db:"security_id"`
	StartedAt   time.Time `db:"started_at"`
	EndedAt     time.Time `db:"ended_at"`
	Outcome     string    `db:"outcome"`
	ErrorKind   string    `db:"error_kind"`
	Score       float64   `db:"score"`
	Confidence  float64   `db:"confidence"`
	PayloadSize string    `db:"payload_size"`
}

// LoadInvocations returns up to limit records that ended at or after since, newest first.
func (s *CHAnalysisStore) LoadInvocations(ctx context.Context, since time.Time, limit int) ([]models.AgentInvocationRecord, error) {
	q := fmt.Sprintf(`SELECT producer, request_id, security_id, started_at, ended_at, outcome, error_kind, score, confidence, payload_size
FROM %s
WHERE ended_at >= ?
ORDER BY ended_at DESC
LIMIT ?`, s.invocations)

	var rows []invocationRow
	if err := s.db.SelectContext(ctx, &rows, q, since, limit); err != nil {
		s.logError("clickhouse load_invocations error", err)
		return nil, fmt.Errorf("load invocations: %w", err)
	}
	out := make([]models.AgentInvocationRecord, len(rows))
	for i, r := range rows {
		out[i] = models.AgentInvocationRecord{
			Producer:    r.Producer,
			RequestID:   r.RequestID,
			SecurityID:  r.SecurityID,
			StartedAt:   r.StartedAt,
			EndedAt:     r.EndedAt,
			Outcome:     models.Outcome(r.Outcome),
			PayloadSize: models.PayloadSize(r.PayloadSize),
			ErrorKind:   r.ErrorKind,
			Score:       r.Score,
			Confidence:  r.Confidence,
		}
	}
	return out, nil
}

func (s *CHAnalysisStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHAnalysisStore) logError(msg string, err error, fields ...applogger.Field) {
	if s.l != nil {
		s.l.Error(msg, append(fields, applogger.Error(err))...)
	}
}

var _ domrepo.AnalysisStore = (*CHAnalysisStore)(nil)
