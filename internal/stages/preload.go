package stages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"calc-pipeline/internal/model"
	"calc-pipeline/internal/pipeline"
)

// HTTPPreload notifies an origin service that a run is starting and
// claims one data item as preloaded. The origin's answer decides the
// stage status: 2xx is success, any other final status is a refusal.
// 5xx responses and transport errors are retried with backoff
type HTTPPreload struct {
	url        string
	outputItem string
	client     *http.Client
	retry      RetryConfig
}

var _ pipeline.PreloadStage = (*HTTPPreload)(nil)

func NewHTTPPreload(rawURL, outputItem string) *HTTPPreload {
	return &HTTPPreload{
		url:        rawURL,
		outputItem: outputItem,
		client:     &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig,
	}
}

func (p *HTTPPreload) Name() string       { return "preload_" + p.outputItem }
func (p *HTTPPreload) OutputItem() string { return p.outputItem }

// Preload calls the origin with the run window and entity filter as
// query parameters
func (p *HTTPPreload) Preload(ctx context.Context, win model.Window, entities []string) (bool, error) {
	u, err := url.Parse(p.url)
	if err != nil {
		return false, fmt.Errorf("preload url %q: %w", p.url, err)
	}
	q := u.Query()
	if win.Start != nil {
		q.Set("start", win.Start.UTC().Format(time.RFC3339))
	}
	if win.End != nil {
		q.Set("end", win.End.UTC().Format(time.RFC3339))
	}
	if len(entities) > 0 {
		q.Set("entities", strings.Join(entities, ","))
	}
	u.RawQuery = q.Encode()

	var status int
	err = p.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		status = resp.StatusCode
		if status >= 500 {
			return fmt.Errorf("origin returned %s", resp.Status)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("preload %s: %w", p.outputItem, err)
	}
	return status >= 200 && status < 300, nil
}

func (p *HTTPPreload) ArgMetadata() map[string]interface{} {
	return map[string]interface{}{
		"url":         p.url,
		"output_item": p.outputItem,
	}
}
