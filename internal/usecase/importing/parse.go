package importing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrEmptyInput          = errors.New("importación: no hay datos para importar")
	ErrInvalidDefaultGrade = errors.New("importación: grado por defecto inválido")
)

type Action string

const (
	ActionNew     Action = "nuevo"
	ActionUpdate  Action = "actualizar"
	ActionError   Action = "error"
	ActionCreated Action = "creado"
	ActionUpdated Action = "actualizado"
	ActionSkipped Action = "omitido"
)

// ImportRow es una fila ya validada. Values usa las claves Output de cada campo.
type ImportRow struct {
	RowNumber int               `json:"fila"`
	Values    map[string]string `json:"datos"`
	Valid     bool              `json:"valido"`
	Error     string            `json:"error,omitempty"`
	Action    Action            `json:"accion,omitempty"`
}

func (r ImportRow) withAction(a Action) ImportRow {
	r.Action = a
	return r
}

func (r ImportRow) Value(output string) string {
	return r.Values[output]
}

type Options struct {
	RawText      string
	Mapping      ColumnMapping
	DefaultGrade string
}

type ParseResult struct {
	Headers []string
	Mapping ColumnMapping
	Rows    []ImportRow
}

// Parse tokeniza el texto y valida cada fila. Los errores por fila quedan en
// la fila; sólo problemas del lote completo devuelven error.
func Parse(entity Entity, opts Options) (ParseResult, error) {
	lines := SplitLines(opts.RawText)
	if len(lines) == 0 {
		return ParseResult{}, ErrEmptyInput
	}

	defaultGrade := ""
	if strings.TrimSpace(opts.DefaultGrade) != "" {
		defaultGrade = NormalizeGrade(opts.DefaultGrade)
		if defaultGrade == "" {
			return ParseResult{}, fmt.Errorf("%w: %q", ErrInvalidDefaultGrade, opts.DefaultGrade)
		}
	}

	var (
		res   ParseResult
		delim = DetectDelimiter(lines[0])
		first = SplitColumns(lines[0], delim)
		start = 0
	)
	if len(opts.Mapping) == 0 {
		res.Headers = first
		mapping, err := resolveColumns(first, entity, defaultGrade)
		if err != nil {
			return res, err
		}
		res.Mapping = mapping
		start = 1
	} else {
		res.Mapping = make(ColumnMapping, len(opts.Mapping))
		for name, idx := range opts.Mapping {
			if _, ok := entity.Field(name); ok && idx >= 0 {
				res.Mapping[name] = idx
			}
		}
		if err := checkRequired(entity, res.Mapping, defaultGrade); err != nil {
			return res, err
		}
		if looksLikeHeader(first, entity) {
			res.Headers = first
			start = 1
		}
	}

	seen := make(map[string]int)
	for i := start; i < len(lines); i++ {
		row := buildRow(entity, res.Mapping, SplitColumns(lines[i], delim), i+1, defaultGrade)
		if key := row.Values[keyOutput(entity)]; key != "" && row.Valid {
			if prev, dup := seen[foldKey(key)]; dup {
				row.Valid = false
				row.Error = fmt.Sprintf("%s duplicado (fila %d)", entity.Key, prev)
			} else {
				seen[foldKey(key)] = row.RowNumber
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func keyOutput(entity Entity) string {
	f, _ := entity.Field(entity.Key)
	return f.Output
}

func buildRow(entity Entity, mapping ColumnMapping, cells []string, number int, defaultGrade string) ImportRow {
	values := make(map[string]string, len(entity.Fields))
	var errs []string

	for _, f := range entity.Fields {
		raw := ""
		if idx, ok := mapping[f.Name]; ok && idx < len(cells) {
			raw = strings.TrimSpace(cells[idx])
		}

		switch f.Kind {
		case KindGrade:
			g := NormalizeGrade(raw)
			switch {
			case g != "":
				values[f.Output] = g
			case defaultGrade != "":
				values[f.Output] = defaultGrade
			case raw == "" && f.Required:
				errs = append(errs, f.Output+" vacío")
			case raw != "":
				values[f.Output] = raw
				errs = append(errs, fmt.Sprintf("%s inválido: %q", f.Output, raw))
			}
		case KindSubject:
			s := NormalizeSubject(raw)
			switch {
			case s != "":
				values[f.Output] = s
			case raw == "" && f.Required:
				errs = append(errs, f.Output+" vacía")
			case raw != "":
				values[f.Output] = raw
				errs = append(errs, fmt.Sprintf("%s inválida: %q", f.Output, raw))
			}
		case KindPrice:
			if raw == "" {
				if f.Required {
					errs = append(errs, f.Output+" vacío")
				}
				continue
			}
			d, err := ParsePrice(raw)
			if err != nil {
				values[f.Output] = raw
				errs = append(errs, fmt.Sprintf("%s inválido: %q", f.Output, raw))
				continue
			}
			values[f.Output] = d.StringFixed(2)
		case KindQuantity:
			n, err := ParseQuantity(raw)
			if err != nil {
				values[f.Output] = raw
				errs = append(errs, fmt.Sprintf("%s inválida: %q", f.Output, raw))
				continue
			}
			values[f.Output] = strconv.Itoa(n)
		default:
			if raw == "" && f.Required {
				errs = append(errs, f.Output+" vacío")
				continue
			}
			if raw != "" {
				values[f.Output] = raw
			}
		}
	}

	return ImportRow{
		RowNumber: number,
		Values:    values,
		Valid:     len(errs) == 0,
		Error:     strings.Join(errs, "; "),
	}
}
