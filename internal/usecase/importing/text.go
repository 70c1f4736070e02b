package importing

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold pasa a minúsculas, quita acentos y colapsa espacios: "  Número " -> "numero".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// foldKey es fold más separadores comunes de encabezados convertidos en espacios.
func foldKey(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', ':', '/', '°', 'º', 'ª', '#', '*', '"', '\'':
			return ' '
		}
		return r
	}, s)
	return fold(s)
}

// SplitLines separa por fin de línea y descarta las líneas vacías.
func SplitLines(raw string) []string {
	raw = strings.TrimPrefix(raw, "\ufeff")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// SplitColumns separa una línea en columnas con el delimitador del lote. Los
// campos entre comillas dobles pueden contener delimitadores y "" escapa una
// comilla.
func SplitColumns(line string, delim rune) []string {
	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
		quoted   bool
	)
	flush := func() {
		value := cur.String()
		if !quoted {
			value = strings.TrimSpace(value)
		}
		fields = append(fields, value)
		cur.Reset()
		quoted = false
	}

	rs := []rune(line)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case inQuotes && r == '"':
			if i+1 < len(rs) && rs[i+1] == '"' {
				cur.WriteRune('"')
				i++
			} else {
				inQuotes = false
			}
		case inQuotes:
			cur.WriteRune(r)
		case r == '"' && !quoted && strings.TrimSpace(cur.String()) == "":
			cur.Reset()
			inQuotes = true
			quoted = true
		case r == delim:
			flush()
		case quoted && unicode.IsSpace(r):
			// espacios entre la comilla de cierre y el delimitador
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

// DetectDelimiter elige el delimitador de un lote a partir de su primera línea:
// tabulador si lo hay (pegado desde una hoja de cálculo), punto y coma si
// aparece fuera de comillas, coma en otro caso.
func DetectDelimiter(line string) rune {
	if strings.ContainsRune(line, '\t') {
		return '\t'
	}
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ';' && !inQuotes:
			return ';'
		}
	}
	return ','
}
