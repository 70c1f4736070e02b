package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unatienda/internal/domain"
	"unatienda/internal/usecase/importing"
)

func TestImportBooksSequentialPartialSuccess(t *testing.T) {
	var (
		mu    sync.Mutex
		saved []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/libros", r.URL.Path)
		var book domain.Book
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&book)) {
			return
		}
		if book.Title == "Libro 3" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"disco lleno"}`))
			return
		}
		mu.Lock()
		saved = append(saved, book.Title)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"accion":"creado"}`))
	}))
	defer srv.Close()

	var raw strings.Builder
	raw.WriteString("nombre\tgrado\tmateria\tprecio\n")
	for _, n := range []string{"1", "2", "3", "4", "5"} {
		raw.WriteString("Libro " + n + "\t1\tMatemáticas\t10\n")
	}

	sum, err := New(srv.URL, nil).ImportBooksSequential(context.Background(), importing.Request{RawText: raw.String()})
	require.NoError(t, err)

	assert.Equal(t, 4, sum.Created)
	assert.Equal(t, 1, sum.Errors)
	require.Len(t, sum.Results, 5)
	assert.Equal(t, importing.ActionError, sum.Results[2].Action)
	assert.Equal(t, "api: 500: disco lleno", sum.Results[2].Error)
	assert.Equal(t, []string{"Libro 1", "Libro 2", "Libro 4", "Libro 5"}, saved)
}

func TestImportBooksSequentialBatchError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ImportBooksSequential(context.Background(), importing.Request{RawText: "nombre\nLibro"})
	var missing *importing.MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Zero(t, calls)
}

func TestPreviewDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/store/bulk-import/libros/preview", r.URL.Path)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"faltan columnas obligatorias: materia","faltantes":["materia"]}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Preview(context.Background(), "libros", importing.Request{RawText: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, []string{"materia"}, apiErr.Missing)
}

func TestImportSendsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req importing.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2", req.DefaultGrade)
		if assert.NotNil(t, req.UpdateExisting) {
			assert.False(t, *req.UpdateExisting)
		}
		_, _ = w.Write([]byte(`{"creados":2,"actualizados":0,"omitidos":1,"errores":0,"invalidos":0,"resultados":[]}`))
	}))
	defer srv.Close()

	off := false
	sum, err := New(srv.URL+"/", nil).Import(context.Background(), "estudiantes", importing.Request{
		RawText: "numero,nombre\n1,Ana", DefaultGrade: "2", UpdateExisting: &off,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, 1, sum.Skipped)
}
