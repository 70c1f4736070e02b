package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"unatienda/internal/domain"
	"unatienda/internal/usecase/importing"
)

// APIError es una respuesta no exitosa del servidor con su campo "error".
type APIError struct {
	Status  int
	Message string
	Missing []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	httpCli *http.Client
}

func New(baseURL string, httpCli *http.Client) *Client {
	if httpCli == nil {
		httpCli = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpCli: httpCli}
}

func (c *Client) Preview(ctx context.Context, entity string, req importing.Request) (*importing.Preview, error) {
	var out importing.Preview
	path := "/api/store/bulk-import/" + url.PathEscape(entity) + "/preview"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Import(ctx context.Context, entity string, req importing.Request) (*importing.Summary, error) {
	var out importing.Summary
	path := "/api/store/bulk-import/" + url.PathEscape(entity) + "/import"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveBook crea o actualiza un libro con POST /admin/libros.
func (c *Client) SaveBook(ctx context.Context, book *domain.Book) (importing.Action, error) {
	var out struct {
		Action importing.Action `json:"accion"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/admin/libros", book, &out); err != nil {
		return importing.ActionError, err
	}
	return out.Action, nil
}

// ParseBooks valida el texto localmente, sin tocar el servidor.
func ParseBooks(req importing.Request) (importing.ParseResult, error) {
	return importing.Parse(importing.Books, importing.Options{
		RawText:      req.RawText,
		Mapping:      req.ColumnMapping,
		DefaultGrade: req.DefaultGrade,
	})
}

// CommitBooks envía las filas válidas una por una. Un libro rechazado no
// detiene el resto.
func (c *Client) CommitBooks(ctx context.Context, rows []importing.ImportRow) importing.Summary {
	return importing.Commit(ctx, rows, func(ctx context.Context, row importing.ImportRow) (importing.Action, error) {
		book, err := importing.BookFromRow(row)
		if err != nil {
			return importing.ActionError, err
		}
		return c.SaveBook(ctx, book)
	})
}

// ImportBooksSequential es ParseBooks seguido de CommitBooks.
func (c *Client) ImportBooksSequential(ctx context.Context, req importing.Request) (importing.Summary, error) {
	parsed, err := ParseBooks(req)
	if err != nil {
		return importing.Summary{}, err
	}
	return c.CommitBooks(ctx, parsed.Rows), nil
}

// Template descarga la plantilla CSV de la entidad.
func (c *Client) Template(ctx context.Context, entity string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/store/bulk-import/"+url.PathEscape(entity)+"/template.csv", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("api: template: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error     string   `json:"error"`
		Faltantes []string `json:"faltantes"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Missing = payload.Faltantes
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
