package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"unatienda/internal/domain"
)

func (s *Store) ExistingStudentNumbers(ctx context.Context, numbers []string) (map[string]bool, error) {
	return s.existingKeys(ctx, "students", "number", numbers)
}

// UpsertStudent crea o actualiza por número de estudiante; created indica cuál de las dos.
func (s *Store) UpsertStudent(ctx context.Context, student *domain.Student) (bool, error) {
	if student == nil || student.Number == "" {
		return false, fmt.Errorf("sqlite: student without number")
	}
	if student.UpdatedAt.IsZero() {
		student.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin upsert student: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM students WHERE number = ?;`, student.Number).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("sqlite: lookup student: %w", err)
	}

	const stmt = `
INSERT INTO students (number, full_name, grade, section, email, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(number) DO UPDATE SET
	full_name=excluded.full_name,
	grade=excluded.grade,
	section=excluded.section,
	email=excluded.email,
	updated_at=excluded.updated_at;
`
	if _, err := tx.ExecContext(ctx, stmt,
		student.Number,
		student.FullName,
		student.Grade,
		nullString(student.Section),
		nullString(student.Email),
		student.UpdatedAt,
	); err != nil {
		return false, fmt.Errorf("sqlite: upsert student: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: commit student: %w", err)
	}
	return exists == 0, nil
}

func (s *Store) ListStudents(ctx context.Context) ([]*domain.Student, error) {
	const query = `
SELECT number, full_name, grade, section, email, updated_at
FROM students
ORDER BY grade, full_name;
`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list students: %w", err)
	}
	defer rows.Close()

	var out []*domain.Student
	for rows.Next() {
		var (
			st             domain.Student
			section, email sql.NullString
			updatedAt      sql.NullTime
		)
		if err := rows.Scan(&st.Number, &st.FullName, &st.Grade, &section, &email, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan student: %w", err)
		}
		st.Section = section.String
		st.Email = email.String
		st.UpdatedAt = updatedAt.Time
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list students rows: %w", err)
	}
	return out, nil
}

var _ domain.StudentRepository = (*Store)(nil)
