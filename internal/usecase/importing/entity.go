package importing

import (
	"errors"
	"strings"
)

var ErrUnknownEntity = errors.New("importación: entidad desconocida")

type FieldKind int

const (
	KindText FieldKind = iota
	KindGrade
	KindSubject
	KindPrice
	KindQuantity
)

// Field describe una columna lógica. Name es la clave del mapeo de columnas,
// Output la clave con la que el valor aparece en la vista previa.
type Field struct {
	Name     string
	Output   string
	Label    string
	Aliases  []string
	Required bool
	Kind     FieldKind
	Example  string
}

type Entity struct {
	Name   string
	Fields []Field
	// Key es el campo de clave natural (numero de estudiante, código de libro).
	Key string
}

func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DefaultMapping asigna a cada campo su posición en la plantilla.
func (e Entity) DefaultMapping() ColumnMapping {
	m := make(ColumnMapping, len(e.Fields))
	for i, f := range e.Fields {
		m[f.Name] = i
	}
	return m
}

const (
	EntityStudents = "estudiantes"
	EntityBooks    = "libros"
)

var Students = Entity{
	Name: EntityStudents,
	Key:  "numero",
	Fields: []Field{
		{Name: "numero", Output: "numero_estudiante", Label: "Número", Required: true, Kind: KindText, Example: "001",
			Aliases: []string{"numero", "numero estudiante", "no", "num", "nro", "matricula", "carnet", "id", "student number", "student id", "number"}},
		{Name: "nombre", Output: "nombre_completo", Label: "Nombre completo", Required: true, Kind: KindText, Example: "Juan Pérez",
			Aliases: []string{"nombre", "nombre completo", "nombres", "estudiante", "alumno", "name", "full name", "student"}},
		{Name: "grado", Output: "grado", Label: "Grado", Required: true, Kind: KindGrade, Example: "1er Grado",
			Aliases: []string{"grado", "curso", "nivel", "grade"}},
		{Name: "seccion", Output: "seccion", Label: "Sección", Kind: KindText, Example: "A",
			Aliases: []string{"seccion", "grupo", "salon", "section", "group"}},
		{Name: "email", Output: "email", Label: "Correo", Kind: KindText, Example: "juan@example.com",
			Aliases: []string{"email", "e mail", "correo", "correo electronico", "mail"}},
	},
}

var Books = Entity{
	Name: EntityBooks,
	Key:  "codigo",
	Fields: []Field{
		{Name: "codigo", Output: "codigo", Label: "Código", Kind: KindText, Example: "MAT-1",
			Aliases: []string{"codigo", "cod", "codigo libro", "code", "sku", "referencia", "ref"}},
		{Name: "nombre", Output: "nombre", Label: "Nombre", Required: true, Kind: KindText, Example: "Matemáticas 1",
			Aliases: []string{"nombre", "titulo", "libro", "nombre libro", "name", "title", "book"}},
		{Name: "grado", Output: "grado", Label: "Grado", Required: true, Kind: KindGrade, Example: "1er Grado",
			Aliases: []string{"grado", "curso", "nivel", "grade"}},
		{Name: "materia", Output: "materia", Label: "Materia", Required: true, Kind: KindSubject, Example: "Matemáticas",
			Aliases: []string{"materia", "asignatura", "area", "subject"}},
		{Name: "precio", Output: "precio", Label: "Precio", Required: true, Kind: KindPrice, Example: "25.50",
			Aliases: []string{"precio", "valor", "costo", "pvp", "price", "cost"}},
		{Name: "cantidad", Output: "cantidad", Label: "Cantidad", Kind: KindQuantity, Example: "10",
			Aliases: []string{"cantidad", "stock", "existencia", "existencias", "inventario", "quantity", "qty"}},
		{Name: "editorial", Output: "editorial", Label: "Editorial", Kind: KindText, Example: "Santillana",
			Aliases: []string{"editorial", "casa editorial", "publisher"}},
		{Name: "isbn", Output: "isbn", Label: "ISBN", Kind: KindText, Example: "978-0000000000",
			Aliases: []string{"isbn"}},
	},
}

// LookupEntity acepta el nombre en español o en inglés.
func LookupEntity(name string) (Entity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EntityStudents, "students", "estudiante", "student":
		return Students, nil
	case EntityBooks, "books", "libro", "book":
		return Books, nil
	default:
		return Entity{}, ErrUnknownEntity
	}
}
