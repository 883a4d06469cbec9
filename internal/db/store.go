package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/reliefroute/backend/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a request is no longer in a state that accepts the write.
	ErrConflict = errors.New("conflict")
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL applied by EnsureSchema.
func Schema() string {
	return schemaSQL
}

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const responderColumns = `id, name, capabilities, location_label, lat, lon, embedding, active, updated_at`

func (s *Store) ListResponders(ctx context.Context, activeOnly bool) ([]models.Responder, error) {
	query := `SELECT ` + responderColumns + ` FROM responders`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id ASC`

	rows, err := s.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Responder
	for rows.Next() {
		var (
			r        models.Responder
			lat, lon *float64
			emb      *pgvector.Vector
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Capabilities, &r.Location.Label, &lat, &lon, &emb, &r.Active, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Location.Coords = coordsFrom(lat, lon)
		r.Embedding = embeddingFrom(emb)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertResponder(ctx context.Context, r models.Responder) error {
	lat, lon := coordsArgs(r.Location.Coords)
	if r.Capabilities == nil {
		r.Capabilities = []string{}
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO responders (id, name, capabilities, location_label, lat, lon, embedding, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capabilities = EXCLUDED.capabilities,
			location_label = EXCLUDED.location_label,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			embedding = COALESCE(EXCLUDED.embedding, responders.embedding),
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`, r.ID, r.Name, r.Capabilities, r.Location.Label, lat, lon, embeddingArg(r.Embedding), r.Active, r.UpdatedAt)
	return err
}

// ActiveAssignmentCounts counts requests still held by each responder.
func (s *Store) ActiveAssignmentCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT assigned_responder_id, COUNT(*)
		FROM requests
		WHERE assigned_responder_id IS NOT NULL AND status IN ($1, $2)
		GROUP BY assigned_responder_id
	`, models.StatusAssigned, models.StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

const requestColumns = `id, COALESCE(client_id, ''), text, ocr_text, transcript, location_label, lat, lon, contact, status, assigned_responder_id, classification, created_at, updated_at`

func scanRequest(row pgx.Row) (models.Request, error) {
	var (
		r        models.Request
		lat, lon *float64
	)
	err := row.Scan(&r.ID, &r.ClientID, &r.Text, &r.OCRText, &r.Transcript, &r.Location.Label, &lat, &lon,
		&r.Contact, &r.Status, &r.AssignedResponderID, &r.Classification, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.Request{}, err
	}
	r.Location.Coords = coordsFrom(lat, lon)
	return r, nil
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]models.Request, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) InsertRequest(ctx context.Context, r models.Request) error {
	lat, lon := coordsArgs(r.Location.Coords)
	var clientID *string
	if r.ClientID != "" {
		clientID = &r.ClientID
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO requests (id, client_id, text, ocr_text, transcript, location_label, lat, lon, contact, status, assigned_responder_id, classification, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, r.ID, clientID, r.Text, r.OCRText, r.Transcript, r.Location.Label, lat, lon, r.Contact, r.Status,
		r.AssignedResponderID, r.Classification, r.CreatedAt, r.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (models.Request, error) {
	r, err := scanRequest(s.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Request{}, ErrNotFound
	}
	return r, err
}

func (s *Store) FindRequestByClientID(ctx context.Context, clientID string) (models.Request, error) {
	r, err := scanRequest(s.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE client_id = $1`, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Request{}, ErrNotFound
	}
	return r, err
}

func (s *Store) ListRequests(ctx context.Context, status string, limit, offset int) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	var args []any
	var wheres []string
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return s.queryRequests(ctx, query, args...)
}

func (s *Store) PendingRequests(ctx context.Context) ([]models.Request, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE status = $1 ORDER BY created_at ASC, id ASC`, models.StatusNew)
}

func (s *Store) RecentRequests(ctx context.Context, limit int) ([]models.Request, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY created_at DESC, id ASC LIMIT $1`, limit)
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE requests SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CommitAssignment marks a new request as assigned and records the decision
// in one transaction.
func (s *Store) CommitAssignment(ctx context.Context, fb models.FeedbackRecord) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE requests SET status = $1, assigned_responder_id = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`, models.StatusAssigned, fb.ResponderID, fb.AssignedAt, fb.RequestID, models.StatusNew)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM requests WHERE id = $1)`, fb.RequestID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrConflict
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO feedback_records (id, request_id, responder_id, components, total, outcome, assigned_at, resolved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		`, fb.ID, fb.RequestID, fb.ResponderID, fb.Components, fb.Total, models.OutcomePending, fb.AssignedAt)
		return err
	})
}

// ResolveRequest moves a request to a terminal status and resolves its pending
// feedback record. The record is returned when one existed.
func (s *Store) ResolveRequest(ctx context.Context, requestID, status, outcome string, at time.Time) (*models.FeedbackRecord, error) {
	var resolved *models.FeedbackRecord
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE requests SET status = $1, updated_at = $2 WHERE id = $3`, status, at, requestID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		var fb models.FeedbackRecord
		err = tx.QueryRow(ctx, `
			UPDATE feedback_records SET outcome = $1, resolved_at = $2
			WHERE id = (
				SELECT id FROM feedback_records
				WHERE request_id = $3 AND resolved_at IS NULL
				ORDER BY assigned_at DESC LIMIT 1
			)
			RETURNING id, request_id, responder_id, components, total, outcome, assigned_at, resolved_at
		`, outcome, at, requestID).Scan(&fb.ID, &fb.RequestID, &fb.ResponderID, &fb.Components, &fb.Total, &fb.Outcome, &fb.AssignedAt, &fb.ResolvedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		resolved = &fb
		return nil
	})
	return resolved, err
}

func (s *Store) queryFeedback(ctx context.Context, query string, args ...any) ([]models.FeedbackRecord, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FeedbackRecord
	for rows.Next() {
		var fb models.FeedbackRecord
		if err := rows.Scan(&fb.ID, &fb.RequestID, &fb.ResponderID, &fb.Components, &fb.Total, &fb.Outcome, &fb.AssignedAt, &fb.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *Store) RecentFeedback(ctx context.Context, limit int) ([]models.FeedbackRecord, error) {
	return s.queryFeedback(ctx, `
		SELECT id, request_id, responder_id, components, total, outcome, assigned_at, resolved_at
		FROM feedback_records ORDER BY assigned_at DESC, id ASC LIMIT $1
	`, limit)
}

func (s *Store) AllFeedback(ctx context.Context) ([]models.FeedbackRecord, error) {
	return s.queryFeedback(ctx, `
		SELECT id, request_id, responder_id, components, total, outcome, assigned_at, resolved_at
		FROM feedback_records ORDER BY assigned_at ASC, id ASC
	`)
}

func (s *Store) LatestWeights(ctx context.Context) (models.WeightVector, error) {
	var w models.WeightVector
	err := s.Pool.QueryRow(ctx, `
		SELECT service, location, semantic, eta, load, reliability, updated_at
		FROM weight_vectors ORDER BY updated_at DESC, id DESC LIMIT 1
	`).Scan(&w.Service, &w.Location, &w.Semantic, &w.ETA, &w.Load, &w.Reliability, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WeightVector{}, ErrNotFound
	}
	return w, err
}

func (s *Store) SaveWeights(ctx context.Context, w models.WeightVector) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO weight_vectors (service, location, semantic, eta, load, reliability, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.Service, w.Location, w.Semantic, w.ETA, w.Load, w.Reliability, w.UpdatedAt)
	return err
}

func (s *Store) ListReliability(ctx context.Context) ([]models.ReliabilityEntry, error) {
	rows, err := s.Pool.Query(ctx, `SELECT responder_id, completed, total, score, updated_at FROM reliability_entries ORDER BY responder_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReliabilityEntry
	for rows.Next() {
		var e models.ReliabilityEntry
		if err := rows.Scan(&e.ResponderID, &e.Completed, &e.Total, &e.Score, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReplaceReliability swaps the whole table for entries.
func (s *Store) ReplaceReliability(ctx context.Context, entries []models.ReliabilityEntry) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM reliability_entries`); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([][]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []any{e.ResponderID, e.Completed, e.Total, e.Score, e.UpdatedAt})
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"reliability_entries"}, []string{"responder_id", "completed", "total", "score", "updated_at"}, pgx.CopyFromRows(rows))
		return err
	})
}

func (s *Store) CreateRun(ctx context.Context, status string) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `INSERT INTO runs (id, status, started_at) VALUES ($1, $2, NOW())`, id, status)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return err
}

func (s *Store) GetLatestRun(ctx context.Context) (models.Run, error) {
	var run models.Run
	err := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`).
		Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Run{}, ErrNotFound
	}
	return run, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func coordsFrom(lat, lon *float64) *models.Coordinates {
	if lat == nil || lon == nil {
		return nil
	}
	return &models.Coordinates{Lat: *lat, Lon: *lon}
}

func coordsArgs(c *models.Coordinates) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	lat, lon := c.Lat, c.Lon
	return &lat, &lon
}

func embeddingFrom(v *pgvector.Vector) []float64 {
	if v == nil {
		return nil
	}
	src := v.Slice()
	out := make([]float64, len(src))
	for i, x := range src {
		out[i] = float64(x)
	}
	return out
}

func embeddingArg(e []float64) *pgvector.Vector {
	if len(e) == 0 {
		return nil
	}
	vals := make([]float32, len(e))
	for i, x := range e {
		vals[i] = float32(x)
	}
	v := pgvector.NewVector(vals)
	return &v
}
