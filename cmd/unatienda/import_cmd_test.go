package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unatienda/internal/usecase/importing"
)

func TestParseMapping(t *testing.T) {
	m, err := parseMapping(" numero=0, Nombre=1,grado = 2 ")
	require.NoError(t, err)
	assert.Equal(t, importing.ColumnMapping{"numero": 0, "nombre": 1, "grado": 2}, m)

	m, err = parseMapping("")
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = parseMapping("numero")
	assert.Error(t, err)
	_, err = parseMapping("numero=-1")
	assert.Error(t, err)
}

func TestReadInputFromStdin(t *testing.T) {
	got, err := readInput(strings.NewReader("a,b"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "a,b", got)
}

func TestPrintPreview(t *testing.T) {
	var buf bytes.Buffer
	printPreview(&buf, &importing.Preview{
		Summary: importing.PreviewSummary{New: 2, Updates: 1, Errors: 1},
		Errors:  []importing.RowError{{Row: 3, Error: "grado inválido: \"x\""}},
	})
	out := buf.String()
	assert.Contains(t, out, "nuevos: 2  actualizaciones: 1  errores: 1")
	assert.Contains(t, out, "grado inválido")
}

func TestTemplateCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"template", "students"})
	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(buf.String(), "Número,Nombre completo,Grado"))
}

type apiRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (a *apiRecorder) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.paths = append(a.paths, r.URL.Path)
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/preview"):
			_, _ = w.Write([]byte(`{"preview":[],"resumen":{"nuevos":1,"actualizaciones":0,"errores":0},"errores":[]}`))
		case strings.HasSuffix(r.URL.Path, "/import"):
			_, _ = w.Write([]byte(`{"creados":1,"actualizados":0,"omitidos":0,"errores":0,"invalidos":0}`))
		case r.URL.Path == "/admin/libros":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"accion":"creado"}`))
		default:
			assert.Failf(t, "ruta inesperada", "%s", r.URL.Path)
		}
	})
}

func (a *apiRecorder) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

func runImportCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	importYes, importSequential, importPreviewOnly, importNoUpdate = false, false, false, false
	importMapping, importDefaultGrade = "", ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeBooksFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libros.csv")
	require.NoError(t, os.WriteFile(path, []byte("nombre,grado,materia,precio\nLibro 1,1,Matemáticas,10\n"), 0o600))
	return path
}

func TestImportWithoutConfirmationDoesNotWrite(t *testing.T) {
	rec := &apiRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()
	file := writeBooksFile(t)

	out, err := runImportCommand(t, "n\n", "import", "libros", file, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "importación cancelada")
	assert.Equal(t, []string{"/api/store/bulk-import/libros/preview"}, rec.snapshot())

	out, err = runImportCommand(t, "", "import", "libros", file, "--server", srv.URL, "--sequential")
	require.NoError(t, err)
	assert.Contains(t, out, "válidos: 1  errores: 0")
	assert.Len(t, rec.snapshot(), 1)
}

func TestImportFromStdinRequiresYes(t *testing.T) {
	rec := &apiRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()

	_, err := runImportCommand(t, "nombre,grado,materia,precio\nLibro 1,1,Matemáticas,10\n",
		"import", "libros", "-", "--server", srv.URL)
	assert.ErrorIs(t, err, errNeedsConfirmation)
	assert.Equal(t, []string{"/api/store/bulk-import/libros/preview"}, rec.snapshot())
}

func TestImportConfirmed(t *testing.T) {
	rec := &apiRecorder{}
	srv := httptest.NewServer(rec.handler(t))
	defer srv.Close()
	file := writeBooksFile(t)

	out, err := runImportCommand(t, "s\n", "import", "libros", file, "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "creados: 1")
	assert.Equal(t, []string{
		"/api/store/bulk-import/libros/preview",
		"/api/store/bulk-import/libros/import",
	}, rec.snapshot())

	_, err = runImportCommand(t, "", "import", "libros", file, "--server", srv.URL, "--sequential", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "/admin/libros", rec.snapshot()[2])
}
