package importing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTabPasteWithExplicitMapping(t *testing.T) {
	res, err := Parse(Students, Options{
		RawText: "Número\tNombre\tGrado\n001\tJuan Pérez\t1er Grado",
		Mapping: ColumnMapping{"numero": 0, "nombre": 1, "grado": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Número", "Nombre", "Grado"}, res.Headers)
	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.True(t, row.Valid, row.Error)
	assert.Equal(t, 2, row.RowNumber)
	assert.Equal(t, "001", row.Value("numero_estudiante"))
	assert.Equal(t, "Juan Pérez", row.Value("nombre_completo"))
	assert.Equal(t, "1", row.Value("grado"))
}

func TestParseExplicitMappingWithoutHeader(t *testing.T) {
	res, err := Parse(Students, Options{
		RawText: "001,Ana,2do\n002,Luis,3ro",
		Mapping: Students.DefaultMapping(),
	})
	require.NoError(t, err)

	assert.Nil(t, res.Headers)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Rows[0].RowNumber)
	assert.Equal(t, "2", res.Rows[0].Value("grado"))
	assert.Equal(t, "3", res.Rows[1].Value("grado"))
}

func TestParseHeaderAliasesRequired(t *testing.T) {
	_, err := Parse(Students, Options{RawText: "001,Ana,2do"})

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"numero", "nombre", "grado"}, missing.Fields)
}

func TestParseMappingMissingRequiredField(t *testing.T) {
	_, err := Parse(Books, Options{
		RawText: "Matemáticas 1,1,25",
		Mapping: ColumnMapping{"nombre": 0, "grado": 1, "precio": 2},
	})

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"materia"}, missing.Fields)
}

func TestParseJoinsRowErrors(t *testing.T) {
	res, err := Parse(Books, Options{
		RawText: "codigo,nombre,grado,materia,precio,cantidad\n" +
			"L1,,1,Matemáticas,abc,2\n" +
			"L2,Inglés 5,quinto,Inglés,10.5,-3",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.False(t, res.Rows[0].Valid)
	assert.Equal(t, `nombre vacío; precio inválido: "abc"`, res.Rows[0].Error)
	assert.Equal(t, "abc", res.Rows[0].Value("precio"))

	assert.False(t, res.Rows[1].Valid)
	assert.Equal(t, `cantidad inválida: "-3"`, res.Rows[1].Error)
	assert.Equal(t, "5", res.Rows[1].Value("grado"))
	assert.Equal(t, "ingles", res.Rows[1].Value("materia"))
	assert.Equal(t, "10.50", res.Rows[1].Value("precio"))
}

func TestParseUnmappableGradeFailsOnlyTheRow(t *testing.T) {
	res, err := Parse(Students, Options{
		RawText: "numero,nombre,grado\n001,Ana,grado x\n002,Luis,2",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.False(t, res.Rows[0].Valid)
	assert.Equal(t, `grado inválido: "grado x"`, res.Rows[0].Error)
	assert.True(t, res.Rows[1].Valid)
}

func TestParseDefaultGrade(t *testing.T) {
	t.Run("column absent", func(t *testing.T) {
		res, err := Parse(Students, Options{
			RawText:      "numero,nombre\n001,Ana",
			DefaultGrade: "2do grado",
		})
		require.NoError(t, err)
		require.Len(t, res.Rows, 1)
		assert.True(t, res.Rows[0].Valid)
		assert.Equal(t, "2", res.Rows[0].Value("grado"))
	})

	t.Run("empty or unmappable cell", func(t *testing.T) {
		res, err := Parse(Students, Options{
			RawText:      "numero,nombre,grado\n001,Ana,\n002,Luis,grado x\n003,Eva,4to",
			DefaultGrade: "2",
		})
		require.NoError(t, err)
		require.Len(t, res.Rows, 3)
		assert.Equal(t, "2", res.Rows[0].Value("grado"))
		assert.Equal(t, "2", res.Rows[1].Value("grado"))
		assert.Equal(t, "4", res.Rows[2].Value("grado"))
	})

	t.Run("invalid default", func(t *testing.T) {
		_, err := Parse(Students, Options{RawText: "numero,nombre\n001,Ana", DefaultGrade: "grado x"})
		assert.ErrorIs(t, err, ErrInvalidDefaultGrade)
	})
}

func TestParseDuplicateKey(t *testing.T) {
	res, err := Parse(Students, Options{RawText: "numero,nombre,grado\n001,Ana,1\n001,Luis,2"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	assert.True(t, res.Rows[0].Valid)
	assert.False(t, res.Rows[1].Valid)
	assert.Equal(t, "numero duplicado (fila 2)", res.Rows[1].Error)
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(Students, Options{RawText: " \n\r\n"})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseIsDeterministic(t *testing.T) {
	opts := Options{RawText: "numero;nombre;grado\n001;Ana;1\n002;;x"}
	first, err := Parse(Students, opts)
	require.NoError(t, err)
	second, err := Parse(Students, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseKeepsBatchDelimiterForEveryRow(t *testing.T) {
	res, err := Parse(Books, Options{
		RawText: "codigo,nombre,grado,materia,precio\n" +
			"MAT-1,Matemáticas; Vol 1,1er Grado,Matemáticas,25.50\n" +
			"ESP-1,Lectura Viva,2do Grado,Español,18",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	row := res.Rows[0]
	assert.True(t, row.Valid, row.Error)
	assert.Equal(t, "MAT-1", row.Value("codigo"))
	assert.Equal(t, "Matemáticas; Vol 1", row.Value("nombre"))
	assert.Equal(t, "1", row.Value("grado"))
	assert.Equal(t, "matematicas", row.Value("materia"))
	assert.True(t, res.Rows[1].Valid, res.Rows[1].Error)
}
