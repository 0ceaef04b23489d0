package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ewintr.nl/ytstats/model"
)

const notionVersion = "2022-06-28"

type NotionInfo struct {
	Endpoint   string
	Token      string
	DatabaseID string
	Timeout    time.Duration
}

// Notion talks to one database through the Notion REST API.
type Notion struct {
	endpoint   string
	token      string
	databaseID string
	timeout    time.Duration
	client     *http.Client
}

func NewNotion(info NotionInfo, client *http.Client) *Notion {
	if client == nil {
		client = http.DefaultClient
	}
	return &Notion{
		endpoint:   strings.TrimSuffix(info.Endpoint, "/"),
		token:      info.Token,
		databaseID: info.DatabaseID,
		timeout:    info.Timeout,
		client:     client,
	}
}

func (n *Notion) Query(ctx context.Context, q Query) (Page, error) {
	conditions := make([]map[string]any, 0, len(q.Or))
	for _, c := range q.Or {
		conditions = append(conditions, map[string]any{
			"property": c.Property,
			c.Kind:     map[string]string{"contains": c.Contains},
		})
	}
	body := map[string]any{
		"filter":    map[string]any{"or": conditions},
		"page_size": q.PageSize,
	}
	if q.StartCursor != "" {
		body["start_cursor"] = q.StartCursor
	}

	var resp struct {
		Results    []model.Record `json:"results"`
		HasMore    bool           `json:"has_more"`
		NextCursor *string        `json:"next_cursor"`
	}
	if err := n.do(ctx, http.MethodPost, fmt.Sprintf("/databases/%s/query", n.databaseID), body, &resp); err != nil {
		return Page{}, err
	}

	page := Page{
		Records: resp.Results,
		HasMore: resp.HasMore,
	}
	if resp.NextCursor != nil {
		page.NextCursor = *resp.NextCursor
	}
	return page, nil
}

// Schema returns the type of each property of the database, keyed by name.
func (n *Notion) Schema(ctx context.Context) (map[string]string, error) {
	var resp struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := n.do(ctx, http.MethodGet, fmt.Sprintf("/databases/%s", n.databaseID), nil, &resp); err != nil {
		return nil, err
	}

	kinds := make(map[string]string, len(resp.Properties))
	for name, prop := range resp.Properties {
		kinds[name] = prop.Type
	}
	return kinds, nil
}

func (n *Notion) Update(ctx context.Context, recordID string, u Update) error {
	body := map[string]any{
		"properties": u.Properties,
	}
	if u.CoverURL != "" {
		body["cover"] = map[string]any{
			"type":     "external",
			"external": map[string]string{"url": u.CoverURL},
		}
	}

	return n.do(ctx, http.MethodPatch, fmt.Sprintf("/pages/%s", recordID), body, nil)
}

func (n *Notion) do(ctx context.Context, method, path string, body, out any) error {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.endpoint+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+n.token)
	req.Header.Set("Notion-Version", notionVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := fmt.Sprintf("%s %s", method, path)
	resp, err := n.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Wait: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if data, readErr := io.ReadAll(resp.Body); readErr == nil && json.Unmarshal(data, &errBody) == nil {
			apiErr.Code = errBody.Code
			apiErr.Message = errBody.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: could not decode response: %w", op, err)
	}
	return nil
}

// parseRetryAfter reads a Retry-After header given in seconds. Zero means
// absent or unusable.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
