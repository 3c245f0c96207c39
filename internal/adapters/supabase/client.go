// Package supabase talks to the listings database through its PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/adapters/observability"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const (
	defaultOrder = "updated_at.desc.nullslast"
	maxBody      = 8 << 20
)

// StatusError is a non-2xx answer from PostgREST.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

// HasStatus reports whether err is a StatusError with one of codes.
func HasStatus(err error, codes ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Code == c {
			return true
		}
	}
	return false
}

type Client struct {
	base     string
	key      string
	table    string
	idColumn string
	http     *retryablehttp.Client
}

func New(base, key, table, idColumn string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	// hand the last response back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if table == "" {
		table = "objects"
	}
	if idColumn == "" {
		idColumn = "id"
	}
	return &Client{
		base:     strings.TrimRight(base, "/"),
		key:      key,
		table:    table,
		idColumn: idColumn,
		http:     rc,
	}
}

func (c *Client) IDColumn() string { return c.idColumn }

func (c *Client) Table() string { return c.table }

func (c *Client) GetObject(ctx context.Context, id string) (domain.Record, error) {
	return c.first(ctx, "get_object", c.table, url.Values{
		c.idColumn: {"eq." + id},
		"select":   {"*"},
	})
}

func (c *Client) GetRecord(ctx context.Context, table, column, value string) (domain.Record, error) {
	return c.first(ctx, "get_record", table, url.Values{
		column:   {"eq." + value},
		"select": {"*"},
		"limit":  {"1"},
	})
}

func (c *Client) UpdateObject(ctx context.Context, id string, patch domain.Record) (domain.Record, error) {
	return c.UpdateRecord(ctx, c.table, c.idColumn, id, patch)
}

// UpdateRecord PATCHes the rows where column equals value and returns the
// first updated row. No matching row is ErrNotFound.
func (c *Client) UpdateRecord(ctx context.Context, table, column, value string, patch domain.Record) (domain.Record, error) {
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("supabase: encode patch: %w", err)
	}
	rows, _, err := c.do(ctx, "update", http.MethodPatch, table, url.Values{column: {"eq." + value}}, body, "return=representation")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

// DeleteObject reports false when nothing matched id.
func (c *Client) DeleteObject(ctx context.Context, id string) (bool, error) {
	rows, status, err := c.do(ctx, "delete", http.MethodDelete, c.table, url.Values{c.idColumn: {"eq." + id}}, nil, "return=representation")
	if err != nil {
		return false, err
	}
	if status == http.StatusNoContent {
		return true, nil
	}
	return len(rows) > 0, nil
}

// CountRecords uses an exact count from Content-Range and falls back to the
// number of returned rows.
func (c *Client) CountRecords(ctx context.Context, table string, filters map[string]string) (int, error) {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	for k, v := range filters {
		q.Set(k, v)
	}
	req, err := c.request(ctx, http.MethodGet, table, q, nil, "count=exact")
	if err != nil {
		return 0, err
	}
	resp, raw, err := c.send(req, "count")
	if err != nil {
		return 0, err
	}
	if n, ok := parseContentRange(resp.Header.Get("Content-Range")); ok {
		return n, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return 0, fmt.Errorf("supabase: decode count: %w", err)
	}
	return len(rows), nil
}

func (c *Client) first(ctx context.Context, op, table string, q url.Values) (domain.Record, error) {
	rows, _, err := c.do(ctx, op, http.MethodGet, table, q, nil, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0], nil
}

func (c *Client) do(ctx context.Context, op, method, table string, q url.Values, body []byte, prefer string) ([]domain.Record, int, error) {
	req, err := c.request(ctx, method, table, q, body, prefer)
	if err != nil {
		return nil, 0, err
	}
	resp, raw, err := c.send(req, op)
	if err != nil {
		return nil, 0, err
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("supabase: decode %s: %w", op, err)
	}
	return rows, resp.StatusCode, nil
}

func (c *Client) request(ctx context.Context, method, table string, q url.Values, body []byte, prefer string) (*retryablehttp.Request, error) {
	u := c.base + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var raw any
	if body != nil {
		raw = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, raw)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	return req, nil
}

func (c *Client) send(req *retryablehttp.Request, op string) (*http.Response, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ObserveExternal("supabase", op, 0, time.Since(start))
		return nil, nil, fmt.Errorf("supabase %s: %w", op, err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("supabase", op, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, fmt.Errorf("supabase %s: read body: %w", op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, raw, nil
}

func decodeRows(raw []byte) ([]domain.Record, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []domain.Record
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// parseContentRange reads the total from "0-0/42" or "*/0".
func parseContentRange(h string) (int, bool) {
	i := strings.LastIndex(h, "/")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(h[i+1:]))
	if err != nil {
		return 0, false
	}
	return n, true
}
