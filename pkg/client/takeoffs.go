package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/turtacn/KeyQTO/pkg/errors"
)

// Report formats accepted by Report and DownloadURL.
const (
	FormatMarkdown   = "markdown"
	FormatLinesCSV   = "csv"
	FormatMaterials  = "materials_csv"
	FormatComponents = "components_csv"
	FormatJSON       = "json"
)

// TakeoffsClient calls the takeoff endpoints.
type TakeoffsClient struct {
	client *Client
}

// Create runs a takeoff synchronously and returns the result.
func (t *TakeoffsClient) Create(ctx context.Context, req *TakeoffRequest) (*Takeoff, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out Takeoff
	if err := t.client.post(ctx, "/api/v1/takeoffs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit queues a takeoff for the worker.  The server answers 503 when it
// has no queue.
func (t *TakeoffsClient) Submit(ctx context.Context, req *TakeoffRequest) (*Queued, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out Queued
	if err := t.client.post(ctx, "/api/v1/takeoffs?async=true", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a stored takeoff.
func (t *TakeoffsClient) Get(ctx context.Context, id string) (*Takeoff, error) {
	if id == "" {
		return nil, errors.InvalidParam("takeoff id is required")
	}
	var out Takeoff
	if err := t.client.get(ctx, "/api/v1/takeoffs/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List pages through stored takeoffs, newest first.
func (t *TakeoffsClient) List(ctx context.Context, limit, offset int) (*TakeoffPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/takeoffs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out TakeoffPage
	if err := t.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report renders a stored takeoff in format and returns the raw document.
func (t *TakeoffsClient) Report(ctx context.Context, id, format string) ([]byte, error) {
	if id == "" {
		return nil, errors.InvalidParam("takeoff id is required")
	}
	var body []byte
	err := t.client.do(ctx, request{
		method: http.MethodGet,
		path:   reportPath(id, "report", format),
		raw:    &body,
		accept: "*/*",
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadURL returns a presigned link to an exported report.
func (t *TakeoffsClient) DownloadURL(ctx context.Context, id, format string) (*Download, error) {
	if id == "" {
		return nil, errors.InvalidParam("takeoff id is required")
	}
	var out Download
	if err := t.client.get(ctx, reportPath(id, "download", format), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func reportPath(id, leaf, format string) string {
	path := fmt.Sprintf("/api/v1/takeoffs/%s/%s", url.PathEscape(id), leaf)
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	return path
}

func validateRequest(req *TakeoffRequest) error {
	if req == nil {
		return errors.InvalidParam("takeoff request is required")
	}
	if len(req.Annotations) == 0 {
		return errors.InvalidParam("takeoff request has no annotations")
	}
	return nil
}

//Personal.AI order the ending
