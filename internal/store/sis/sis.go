// Package sis reads enrolled students from the school information
// system's MariaDB. Access is strictly read-only; the SIS remains the
// source of truth for who is enrolled, while classwatch owns the face
// embeddings and alert records.
package sis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Student is one enrolled student as the SIS knows them.
type Student struct {
	ExternalID string // student number, unique in the SIS
	Name       string
	ClassName  string
}

// Reader reads the SIS student table.
type Reader struct {
	db *sql.DB
}

// Open connects to the SIS database and verifies the connection.
func Open(dsn string) (*Reader, error) {
	if dsn == "" {
		return nil, errors.New("SIS DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SIS database: %w", err)
	}

	return &Reader{db: db}, nil
}

// Close closes the connection pool.
func (r *Reader) Close() error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("closing SIS connection: %w", err)
		}
	}
	return nil
}

// ListEnrolled returns all active students, optionally limited to one
// class. An empty className lists the whole school.
func (r *Reader) ListEnrolled(ctx context.Context, className string) ([]Student, error) {
	query := `
		SELECT student_no, full_name, class_name
		FROM students
		WHERE active = 1
	`
	args := []any{}
	if className != "" {
		query += " AND class_name = ?"
		args = append(args, className)
	}
	query += " ORDER BY student_no"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query SIS students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ExternalID, &s.Name, &s.ClassName); err != nil {
			return nil, fmt.Errorf("scan SIS student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate SIS students: %w", err)
	}

	return students, nil
}
