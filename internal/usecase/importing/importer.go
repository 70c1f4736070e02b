package importing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"unatienda/internal/domain"
)

// Request es el cuerpo de preview e import.
type Request struct {
	RawText        string        `json:"raw_text"`
	ColumnMapping  ColumnMapping `json:"column_mapping,omitempty"`
	DefaultGrade   string        `json:"grado_default,omitempty"`
	UpdateExisting *bool         `json:"actualizar_existentes,omitempty"`
}

func (r Request) options() Options {
	return Options{RawText: r.RawText, Mapping: r.ColumnMapping, DefaultGrade: r.DefaultGrade}
}

// updateExisting es true salvo que el cliente lo desactive explícitamente.
func (r Request) updateExisting() bool {
	return r.UpdateExisting == nil || *r.UpdateExisting
}

type PreviewSummary struct {
	New     int `json:"nuevos"`
	Updates int `json:"actualizaciones"`
	Errors  int `json:"errores"`
}

type RowError struct {
	Row   int    `json:"fila"`
	Error string `json:"error"`
}

type Preview struct {
	Rows    []ImportRow    `json:"preview"`
	Summary PreviewSummary `json:"resumen"`
	Errors  []RowError     `json:"errores"`
	Headers []string       `json:"headers_detectados"`
}

type RowResult struct {
	Row    int    `json:"fila"`
	Action Action `json:"accion"`
	Error  string `json:"error,omitempty"`
}

type Summary struct {
	Created int         `json:"creados"`
	Updated int         `json:"actualizados"`
	Skipped int         `json:"omitidos"`
	Errors  int         `json:"errores"`
	Invalid int         `json:"invalidos"`
	Results []RowResult `json:"resultados"`
}

// Sink confirma una fila válida y devuelve la acción aplicada.
type Sink func(ctx context.Context, row ImportRow) (Action, error)

// Commit recorre las filas válidas en orden y las envía al sink. Un fallo no
// detiene el lote ni revierte las filas anteriores.
func Commit(ctx context.Context, rows []ImportRow, sink Sink) Summary {
	sum := Summary{Results: make([]RowResult, 0, len(rows))}
	for _, row := range rows {
		if !row.Valid {
			sum.Invalid++
			continue
		}
		res := RowResult{Row: row.RowNumber}
		action, err := sink(ctx, row)
		switch {
		case err != nil:
			res.Action = ActionError
			res.Error = err.Error()
			sum.Errors++
		case action == ActionUpdated:
			res.Action = action
			sum.Updated++
		case action == ActionSkipped:
			res.Action = action
			sum.Skipped++
		default:
			res.Action = ActionCreated
			sum.Created++
		}
		sum.Results = append(sum.Results, res)
	}
	return sum
}

type Importer struct {
	students  domain.StudentRepository
	books     domain.BookRepository
	publisher domain.EventPublisher
}

func NewImporter(students domain.StudentRepository, books domain.BookRepository, publisher domain.EventPublisher) *Importer {
	return &Importer{students: students, books: books, publisher: publisher}
}

func (im *Importer) Preview(ctx context.Context, entityName string, req Request) (*Preview, error) {
	entity, err := LookupEntity(entityName)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(entity, req.options())
	if err != nil {
		return nil, err
	}
	existing, err := im.existing(ctx, entity, parsed.Rows)
	if err != nil {
		return nil, err
	}

	out := &Preview{
		Rows:    make([]ImportRow, 0, len(parsed.Rows)),
		Errors:  []RowError{},
		Headers: parsed.Headers,
	}
	if out.Headers == nil {
		out.Headers = []string{}
	}
	for _, row := range parsed.Rows {
		switch {
		case !row.Valid:
			row = row.withAction(ActionError)
			out.Summary.Errors++
			out.Errors = append(out.Errors, RowError{Row: row.RowNumber, Error: row.Error})
		case existing[row.Value(keyOutput(entity))]:
			row = row.withAction(ActionUpdate)
			out.Summary.Updates++
		default:
			row = row.withAction(ActionNew)
			out.Summary.New++
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Import vuelve a parsear el texto (el resultado es determinista) y confirma
// las filas válidas una por una.
func (im *Importer) Import(ctx context.Context, entityName string, req Request) (*Summary, error) {
	entity, err := LookupEntity(entityName)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(entity, req.options())
	if err != nil {
		return nil, err
	}
	existing, err := im.existing(ctx, entity, parsed.Rows)
	if err != nil {
		return nil, err
	}

	update := req.updateExisting()
	sink := func(ctx context.Context, row ImportRow) (Action, error) {
		if !update && existing[row.Value(keyOutput(entity))] {
			return ActionSkipped, nil
		}
		created, err := im.upsert(ctx, entity, row)
		if err != nil {
			return ActionError, err
		}
		if created {
			return ActionCreated, nil
		}
		return ActionUpdated, nil
	}

	sum := Commit(ctx, parsed.Rows, sink)
	log.Info("importación confirmada", "entity", entity.Name, "created", sum.Created,
		"updated", sum.Updated, "skipped", sum.Skipped, "errors", sum.Errors, "invalid", sum.Invalid)
	im.announce(entity, sum)
	return &sum, nil
}

func (im *Importer) existing(ctx context.Context, entity Entity, rows []ImportRow) (map[string]bool, error) {
	var keys []string
	for _, row := range rows {
		if k := row.Value(keyOutput(entity)); row.Valid && k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}

	var (
		found map[string]bool
		err   error
	)
	switch entity.Name {
	case EntityStudents:
		found, err = im.students.ExistingStudentNumbers(ctx, keys)
	case EntityBooks:
		found, err = im.books.ExistingBookCodes(ctx, keys)
	default:
		return nil, ErrUnknownEntity
	}
	if err != nil {
		return nil, fmt.Errorf("importación: buscar existentes: %w", err)
	}
	return found, nil
}

func (im *Importer) upsert(ctx context.Context, entity Entity, row ImportRow) (bool, error) {
	switch entity.Name {
	case EntityStudents:
		return im.students.UpsertStudent(ctx, StudentFromRow(row))
	case EntityBooks:
		book, err := BookFromRow(row)
		if err != nil {
			return false, err
		}
		return im.books.UpsertBook(ctx, book)
	default:
		return false, ErrUnknownEntity
	}
}

func (im *Importer) announce(entity Entity, sum Summary) {
	if im.publisher == nil {
		return
	}
	es, en := "estudiantes", "students"
	if entity.Name == EntityBooks {
		es, en = "libros", "books"
	}
	im.publisher.Publish(domain.EventImportCompleted, domain.AnnouncementEvent{
		Type: domain.EventImportCompleted,
		Message: domain.Texts(map[string]string{
			domain.LangSpanish: fmt.Sprintf("Importación de %s completada: %d creados, %d actualizados, %d errores.",
				es, sum.Created, sum.Updated, sum.Errors+sum.Invalid),
			domain.LangEnglish: fmt.Sprintf("%s import completed: %d created, %d updated, %d errors.",
				strings.ToUpper(en[:1])+en[1:], sum.Created, sum.Updated, sum.Errors+sum.Invalid),
		}),
	})
}

func StudentFromRow(row ImportRow) *domain.Student {
	return &domain.Student{
		Number:   row.Value("numero_estudiante"),
		FullName: row.Value("nombre_completo"),
		Grade:    row.Value("grado"),
		Section:  row.Value("seccion"),
		Email:    row.Value("email"),
	}
}

func BookFromRow(row ImportRow) (*domain.Book, error) {
	price, err := decimal.NewFromString(row.Value("precio"))
	if err != nil {
		return nil, fmt.Errorf("precio inválido: %q", row.Value("precio"))
	}
	qty := 0
	if v := row.Value("cantidad"); v != "" {
		if qty, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("cantidad inválida: %q", v)
		}
	}
	return &domain.Book{
		Code:      row.Value("codigo"),
		Title:     row.Value("nombre"),
		Grade:     row.Value("grado"),
		Subject:   row.Value("materia"),
		Publisher: row.Value("editorial"),
		ISBN:      row.Value("isbn"),
		Price:     price,
		Quantity:  qty,
	}, nil
}

// BookRow convierte un libro a los valores de una fila, el inverso de BookFromRow.
func BookRow(b *domain.Book) map[string]string {
	return map[string]string{
		"codigo":    b.Code,
		"nombre":    b.Title,
		"grado":     b.Grade,
		"materia":   b.Subject,
		"precio":    b.Price.StringFixed(2),
		"cantidad":  strconv.Itoa(b.Quantity),
		"editorial": b.Publisher,
		"isbn":      b.ISBN,
	}
}
