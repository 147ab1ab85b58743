package minidoc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// UploadRequest describes one media upload initiated by a card.
type UploadRequest struct {
	FileName   string
	Size       int64
	Content    io.Reader
	OnProgress func(percent int)
}

// UploadResult is the upload collaborator's success payload.
type UploadResult struct {
	URL string `json:"url"`
}

// Uploader is the external upload collaborator. Cancellation flows through
// the context and mirrors an aborted network request: the error wraps
// ErrUploadCanceled, the zero-status failure state.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// HTTPUploader posts file content to a single endpoint and expects a JSON
// {"url": ...} response.
type HTTPUploader struct {
	Endpoint string
	Client   *http.Client
}

func (u *HTTPUploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	body := io.Reader(req.Content)
	if req.OnProgress != nil && req.Size > 0 {
		body = &progressReader{r: req.Content, total: req.Size, report: req.OnProgress}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	if req.FileName != "" {
		httpReq.Header.Set("X-File-Name", req.FileName)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("upload %s: %w", req.FileName, ErrUploadCanceled)
		}
		return nil, fmt.Errorf("upload %s: %w", req.FileName, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload %s: unexpected status %d", req.FileName, resp.StatusCode)
	}
	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upload %s: decode response: %w", req.FileName, err)
	}
	if req.OnProgress != nil {
		req.OnProgress(100)
	}
	return &out, nil
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(percent int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		p.report(pct)
	}
	return n, err
}

// UploadAll runs the requests concurrently; the first failure cancels the
// rest. Results keep request order.
func UploadAll(ctx context.Context, u Uploader, reqs []UploadRequest) ([]*UploadResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]*UploadResult, len(reqs))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := u.Upload(ctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
