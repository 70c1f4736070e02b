package importing

import (
	"encoding/csv"
	"fmt"
	"io"

	"unatienda/internal/domain"
)

func headerRow(entity Entity) []string {
	out := make([]string, len(entity.Fields))
	for i, f := range entity.Fields {
		out[i] = f.Label
	}
	return out
}

// WriteTemplate escribe la plantilla CSV de la entidad: encabezados que
// ResolveColumns reconoce y una fila de ejemplo.
func WriteTemplate(w io.Writer, entity Entity) error {
	example := make([]string, len(entity.Fields))
	for i, f := range entity.Fields {
		example[i] = f.Example
	}
	cw := csv.NewWriter(w)
	if err := cw.WriteAll([][]string{headerRow(entity), example}); err != nil {
		return fmt.Errorf("plantilla %s: %w", entity.Name, err)
	}
	return nil
}

// WriteBooks exporta el catálogo con las mismas columnas de la plantilla, así
// el archivo puede volver a importarse.
func WriteBooks(w io.Writer, books []*domain.Book) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headerRow(Books)); err != nil {
		return fmt.Errorf("exportar libros: %w", err)
	}
	for _, b := range books {
		values := BookRow(b)
		record := make([]string, len(Books.Fields))
		for i, f := range Books.Fields {
			record[i] = values[f.Output]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("exportar libros: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
