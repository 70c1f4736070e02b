package importing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	got := SplitLines("a\r\nb\rc\n\n   \n d\n")
	assert.Equal(t, []string{"a", "b", "c", " d"}, got)
	assert.Empty(t, SplitLines("\n\r\n"))
}

func TestSplitColumns(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		delim rune
		want  []string
	}{
		{"tab", "001\tJuan Pérez\t1er Grado", '\t', []string{"001", "Juan Pérez", "1er Grado"}},
		{"tab keeps commas", "Pérez, Juan\t1", '\t', []string{"Pérez, Juan", "1"}},
		{"comma", "001, Juan ,1", ',', []string{"001", "Juan", "1"}},
		{"comma keeps semicolon", "MAT-1,Matemáticas; Vol 1,1", ',', []string{"MAT-1", "Matemáticas; Vol 1", "1"}},
		{"semicolon", "001;Juan;1", ';', []string{"001", "Juan", "1"}},
		{"semicolon keeps decimal comma", "L1;Libro;25,50", ';', []string{"L1", "Libro", "25,50"}},
		{"quoted semicolon", `1,"a;b",2`, ',', []string{"1", "a;b", "2"}},
		{"quoted delimiter", `001,"Pérez, Juan" ,1`, ',', []string{"001", "Pérez, Juan", "1"}},
		{"escaped quote", `"dice ""hola""",2`, ',', []string{`dice "hola"`, "2"}},
		{"empty cells", "a,,c,", ',', []string{"a", "", "c", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitColumns(tt.line, tt.delim))
		})
	}
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, '\t', DetectDelimiter("numero\tnombre;x\tgrado"))
	assert.Equal(t, ';', DetectDelimiter("codigo;nombre;precio"))
	assert.Equal(t, ',', DetectDelimiter(`codigo,"nombre;titulo",precio`))
	assert.Equal(t, ',', DetectDelimiter("codigo,nombre,precio"))
}

func TestSplitLinesDropsBOM(t *testing.T) {
	assert.Equal(t, []string{"numero,nombre"}, SplitLines("\ufeffnumero,nombre\n"))
}

func TestResolveColumnsMatchesAliases(t *testing.T) {
	mapping, err := ResolveColumns([]string{"Nombre Completo", `"NÚMERO"`, "grado", "Correo Electrónico"}, Students)
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{"nombre": 0, "numero": 1, "grado": 2, "email": 3}, mapping)

	mapping, err = ResolveColumns([]string{"Título", "Asignatura", "Curso", "PVP", "Stock"}, Books)
	require.NoError(t, err)
	assert.Equal(t, ColumnMapping{"nombre": 0, "materia": 1, "grado": 2, "precio": 3, "cantidad": 4}, mapping)
}

func TestResolveColumnsReportsAllMissing(t *testing.T) {
	_, err := ResolveColumns([]string{"Nombre", "Email", "Otra"}, Students)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"numero", "grado"}, missing.Fields)
	assert.Contains(t, err.Error(), "numero, grado")
}

func TestResolveColumnsFirstDuplicateWins(t *testing.T) {
	mapping, err := ResolveColumns([]string{"numero", "nombre", "grado", "curso"}, Students)
	require.NoError(t, err)
	assert.Equal(t, 2, mapping["grado"])
}

func TestNormalizeGrade(t *testing.T) {
	cases := map[string]string{
		"1er Grado":      "1",
		"1°":             "1",
		"01":             "1",
		"Primer grado":   "1",
		"2do":            "2",
		"grado 3":        "3",
		"decimo":         "10",
		"Décimo":         "10",
		"11vo":           "11",
		"Décimo Primero": "11",
		"kinder":         "K",
		"Pre-Kinder":     "PK",
		"grado x":        "",
		"":               "",
		"13":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeGrade(in), "grade %q", in)
	}
}

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "matematicas", NormalizeSubject("Matemáticas"))
	assert.Equal(t, "matematicas", NormalizeSubject("math"))
	assert.Equal(t, "ingles", NormalizeSubject("Inglés"))
	assert.Equal(t, "educacion_fisica", NormalizeSubject("Educación Física"))
	assert.Equal(t, "espanol", NormalizeSubject("Lengua Española"))
	assert.Equal(t, "", NormalizeSubject("astrología"))
}

func TestParsePrice(t *testing.T) {
	ok := map[string]string{
		"25":        "25.00",
		"25.5":      "25.50",
		"25,50":     "25.50",
		"$1,234.50": "1234.50",
		"1.234,50":  "1234.50",
		"US$ 10":    "10.00",
		"0":         "0.00",
	}
	for in, want := range ok {
		d, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d.StringFixed(2), in)
	}

	for _, in := range []string{"abc", "-5", "", "1.2.3"} {
		_, err := ParsePrice(in)
		assert.Error(t, err, in)
	}
}

func TestParseQuantity(t *testing.T) {
	n, err := ParseQuantity(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = ParseQuantity("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = ParseQuantity("-1")
	assert.Error(t, err)
	_, err = ParseQuantity("2.5")
	assert.Error(t, err)
}
