package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"unatienda/internal/domain"
)

func (s *Store) ExistingBookCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	return s.existingKeys(ctx, "books", "code", codes)
}

// UpsertBook actualiza por código; un libro sin código siempre se inserta.
func (s *Store) UpsertBook(ctx context.Context, book *domain.Book) (bool, error) {
	if book == nil {
		return false, fmt.Errorf("sqlite: book nil")
	}
	if book.Price.IsNegative() || book.Quantity < 0 {
		return false, fmt.Errorf("sqlite: book %q: negative price or quantity", book.Title)
	}
	if book.UpdatedAt.IsZero() {
		book.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: begin upsert book: %w", err)
	}
	defer tx.Rollback()

	exists := 0
	if book.Code != "" {
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM books WHERE code = ?;`, book.Code).Scan(&exists)
		if err != nil && err != sql.ErrNoRows {
			return false, fmt.Errorf("sqlite: lookup book: %w", err)
		}
	}

	const stmt = `
INSERT INTO books (code, title, grade, subject, publisher, isbn, price, quantity, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
	title=excluded.title,
	grade=excluded.grade,
	subject=excluded.subject,
	publisher=excluded.publisher,
	isbn=excluded.isbn,
	price=excluded.price,
	quantity=excluded.quantity,
	updated_at=excluded.updated_at;
`
	if _, err := tx.ExecContext(ctx, stmt,
		nullString(book.Code),
		book.Title,
		book.Grade,
		book.Subject,
		nullString(book.Publisher),
		nullString(book.ISBN),
		book.Price.String(),
		book.Quantity,
		book.UpdatedAt,
	); err != nil {
		return false, fmt.Errorf("sqlite: upsert book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: commit book: %w", err)
	}
	return exists == 0, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	const query = `
SELECT code, title, grade, subject, publisher, isbn, price, quantity, updated_at
FROM books
ORDER BY id;
`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list books: %w", err)
	}
	defer rows.Close()

	var out []*domain.Book
	for rows.Next() {
		var (
			b                     domain.Book
			code, publisher, isbn sql.NullString
			price                 string
			updatedAt             sql.NullTime
		)
		if err := rows.Scan(&code, &b.Title, &b.Grade, &b.Subject, &publisher, &isbn, &price, &b.Quantity, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan book: %w", err)
		}
		if b.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: book price %q: %w", price, err)
		}
		b.Code = code.String
		b.Publisher = publisher.String
		b.ISBN = isbn.String
		b.UpdatedAt = updatedAt.Time
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list books rows: %w", err)
	}
	return out, nil
}

var _ domain.BookRepository = (*Store)(nil)
