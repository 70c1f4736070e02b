package importing

import (
	"fmt"
	"strings"
)

// ColumnMapping asigna campo lógico -> índice de columna (0-based).
type ColumnMapping map[string]int

// MissingColumnsError se devuelve cuando faltan columnas obligatorias; invalida todo el lote.
type MissingColumnsError struct {
	Fields []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("faltan columnas obligatorias: %s", strings.Join(e.Fields, ", "))
}

// aliasIndex: alias normalizado -> nombre de campo, por entidad.
var aliasIndex = map[string]map[string]string{}

func init() {
	for _, e := range []Entity{Students, Books} {
		idx := make(map[string]string)
		for _, f := range e.Fields {
			for _, a := range append([]string{f.Name, f.Output, f.Label}, f.Aliases...) {
				key := foldKey(a)
				if _, taken := idx[key]; !taken {
					idx[key] = f.Name
				}
			}
		}
		aliasIndex[e.Name] = idx
	}
}

func fieldForHeader(entity Entity, header string) (string, bool) {
	name, ok := aliasIndex[entity.Name][foldKey(header)]
	return name, ok
}

// ResolveColumns busca cada campo entre los encabezados. Si un campo aparece
// en varias columnas gana la primera.
func ResolveColumns(headers []string, entity Entity) (ColumnMapping, error) {
	return resolveColumns(headers, entity, "")
}

func resolveColumns(headers []string, entity Entity, defaultGrade string) (ColumnMapping, error) {
	mapping := make(ColumnMapping)
	for i, h := range headers {
		name, ok := fieldForHeader(entity, h)
		if !ok {
			continue
		}
		if _, seen := mapping[name]; !seen {
			mapping[name] = i
		}
	}
	if err := checkRequired(entity, mapping, defaultGrade); err != nil {
		return nil, err
	}
	return mapping, nil
}

// checkRequired valida que los campos obligatorios tengan columna. El grado
// puede faltar si el lote trae un grado por defecto.
func checkRequired(entity Entity, mapping ColumnMapping, defaultGrade string) error {
	var missing []string
	for _, f := range entity.Fields {
		if !f.Required {
			continue
		}
		if idx, ok := mapping[f.Name]; ok && idx >= 0 {
			continue
		}
		if f.Kind == KindGrade && defaultGrade != "" {
			continue
		}
		missing = append(missing, f.Name)
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Fields: missing}
	}
	return nil
}

// looksLikeHeader reporta si alguna celda coincide con un alias de la entidad.
func looksLikeHeader(cells []string, entity Entity) bool {
	for _, c := range cells {
		if _, ok := fieldForHeader(entity, c); ok {
			return true
		}
	}
	return false
}
