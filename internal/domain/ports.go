package domain

import "context"

// StudentRepository guarda estudiantes usando numero_estudiante como clave natural.
type StudentRepository interface {
	ExistingStudentNumbers(ctx context.Context, numbers []string) (map[string]bool, error)
	UpsertStudent(ctx context.Context, student *Student) (created bool, err error)
	ListStudents(ctx context.Context) ([]*Student, error)
}

// BookRepository guarda libros usando el código como clave natural; un libro
// sin código siempre se crea.
type BookRepository interface {
	ExistingBookCodes(ctx context.Context, codes []string) (map[string]bool, error)
	UpsertBook(ctx context.Context, book *Book) (created bool, err error)
	ListBooks(ctx context.Context) ([]*Book, error)
}

type EventPublisher interface {
	Publish(topic string, payload any)
}
