package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/pagination"
	"github.com/cloo-solutions/nutrikb/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConsultationRepository struct {
	db dbtx
}

func NewConsultationRepository(pool *pgxpool.Pool) *ConsultationRepository {
	return &ConsultationRepository{db: pool}
}

func NewConsultationRepositoryWithTx(tx dbtx) *ConsultationRepository {
	return &ConsultationRepository{db: tx}
}

func (r *ConsultationRepository) Create(ctx context.Context, c *domain.Consultation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO consultations (id, child_name, date_of_birth, consultant, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.ChildName, c.DateOfBirth, c.Consultant, c.CreatedAt,
	)
	return err
}

func (r *ConsultationRepository) GetByID(ctx context.Context, id string) (*domain.Consultation, error) {
	var c domain.Consultation
	err := r.db.QueryRow(ctx,
		`SELECT id, child_name, date_of_birth, consultant, created_at
		 FROM consultations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ChildName, &c.DateOfBirth, &c.Consultant, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConsultationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConsultationRepository) List(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.ConsultationPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, child_name, date_of_birth, consultant, created_at
			 FROM consultations
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, child_name, date_of_birth, consultant, created_at
			 FROM consultations
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Consultation
	for rows.Next() {
		var c domain.Consultation
		if err := rows.Scan(&c.ID, &c.ChildName, &c.DateOfBirth, &c.Consultant, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, nextCursor, hasMore := pagination.Trim(items, limit, func(c *domain.Consultation) (string, time.Time) {
		return c.ID, c.CreatedAt
	})

	return &service.ConsultationPageResult{Items: items, NextCursor: nextCursor, HasMore: hasMore}, nil
}

func (r *ConsultationRepository) AddArtifact(ctx context.Context, a *domain.Artifact) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO consultation_artifacts (id, consultation_id, kind, filename, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ConsultationID, string(a.Kind), a.Filename, a.Content, a.CreatedAt,
	)
	return err
}

// ListArtifacts returns a consultation's artifacts oldest first. An empty
// kind returns every kind.
func (r *ConsultationRepository) ListArtifacts(ctx context.Context, consultationID string, kind domain.ArtifactKind) ([]*domain.Artifact, error) {
	query := `SELECT id, consultation_id, kind, filename, content, created_at
		 FROM consultation_artifacts
		 WHERE consultation_id = $1`
	args := []any{consultationID}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		var k string
		if err := rows.Scan(&a.ID, &a.ConsultationID, &k, &a.Filename, &a.Content, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = domain.ArtifactKind(k)
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// SaveRecord replaces the consultation's record of the same kind.
func (r *ConsultationRepository) SaveRecord(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO consultation_records (consultation_id, kind, payload, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (consultation_id, kind) DO UPDATE
		 SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		rec.ConsultationID, string(rec.Kind), rec.Payload, rec.CreatedAt,
	)
	return err
}

func (r *ConsultationRepository) GetRecord(ctx context.Context, consultationID string, kind domain.RecordKind) (*domain.Record, error) {
	rec := domain.Record{ConsultationID: consultationID, Kind: kind}
	err := r.db.QueryRow(ctx,
		`SELECT payload, created_at FROM consultation_records
		 WHERE consultation_id = $1 AND kind = $2`,
		consultationID, string(kind),
	).Scan(&rec.Payload, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}
