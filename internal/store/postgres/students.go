package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jsvoboda/classwatch/internal/roster"
	"github.com/pgvector/pgvector-go"
)

// StudentRepository provides PostgreSQL-backed roster storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new roster repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// List returns all enrolled students ordered by internal ID. Students
// without a stored embedding are returned with a nil embedding.
func (r *StudentRepository) List(ctx context.Context) ([]roster.Identity, error) {
	query := `
		SELECT id, external_id, name, embedding
		FROM students
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []roster.Identity
	for rows.Next() {
		var s roster.Identity
		var vec *pgvector.Vector
		if err := rows.Scan(&s.ID, &s.ExternalID, &s.Name, &vec); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if vec != nil {
			s.Embedding = vec.Slice()
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}

	return students, nil
}

// GetByExternalID looks up one student. Returns sql.ErrNoRows wrapped
// when the student does not exist.
func (r *StudentRepository) GetByExternalID(ctx context.Context, externalID string) (roster.Identity, error) {
	query := `
		SELECT id, external_id, name, embedding
		FROM students
		WHERE external_id = $1
	`

	var s roster.Identity
	var vec *pgvector.Vector
	err := r.pool.QueryRow(ctx, query, externalID).Scan(&s.ID, &s.ExternalID, &s.Name, &vec)
	if err != nil {
		return roster.Identity{}, fmt.Errorf("get student %s: %w", externalID, err)
	}
	if vec != nil {
		s.Embedding = vec.Slice()
	}
	return s, nil
}

// UpsertStudent inserts or updates a student keyed by external ID and
// fills in the assigned internal ID.
func (r *StudentRepository) UpsertStudent(ctx context.Context, s *roster.Identity) error {
	query := `
		INSERT INTO students (external_id, name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE
		SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id
	`

	if err := r.pool.QueryRow(ctx, query, s.ExternalID, s.Name).Scan(&s.ID); err != nil {
		return fmt.Errorf("upsert student %s: %w", s.ExternalID, err)
	}
	return nil
}

// SetEmbedding stores the reference embedding for a student.
func (r *StudentRepository) SetEmbedding(ctx context.Context, externalID string, embedding []float32) error {
	query := `
		UPDATE students
		SET embedding = $2, updated_at = NOW()
		WHERE external_id = $1
	`

	result, err := r.pool.Exec(ctx, query, externalID, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("set embedding for %s: %w", externalID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set embedding for %s: %w", externalID, err)
	}
	if affected == 0 {
		return fmt.Errorf("set embedding: student %s not found: %w", externalID, sql.ErrNoRows)
	}
	return nil
}
