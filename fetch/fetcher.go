/*
Copyright 2026 The Poleshift authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package fetch downloads the compressed artifacts of catalog resources
// into the resource directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/poleshift/stager/catalog"
	"github.com/poleshift/stager/progress"
	"github.com/poleshift/stager/stage"
)

// ContentType is sent with every download request.
const ContentType = "application/x-gzip"

// NewHTTPClient returns the client shared by all downloads of a run.
// Server errors are retried with back off up to retries times; zero
// disables retries. A zero timeout means no timeout, which suits
// multi-gigabyte downloads.
func NewHTTPClient(retries int, timeout time.Duration, log logr.Logger) *retryablehttp.Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryWaitMin = 5 * time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.RetryMax = retries
	httpClient.HTTPClient.Timeout = timeout
	httpClient.Logger = newLeveledLogger(log)
	httpClient.RequestLogHook = retryLogHook(log)
	// Hand the last response back so its status ends up in the error.
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return httpClient
}

// Fetcher brings the compressed artifact of a resource to the committed
// phase, downloading it when neither a committed nor a staged copy is
// present.
type Fetcher struct {
	httpClient        *retryablehttp.Client
	stager            *stage.Stager
	sink              progress.Sink
	maxDownloadSize   int64
	hostnameOverwrite string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithProgressSink sets the sink receiving download progress.
func WithProgressSink(sink progress.Sink) Option {
	return func(f *Fetcher) {
		f.sink = progress.OrDiscard(sink)
	}
}

// WithMaxDownloadSize fails downloads larger than n bytes. Zero or a
// negative value disables the limit.
func WithMaxDownloadSize(n int64) Option {
	return func(f *Fetcher) {
		f.maxDownloadSize = n
	}
}

// WithHostnameOverwrite replaces the host of every resource URL, e.g. to
// download from a mirror.
func WithHostnameOverwrite(host string) Option {
	return func(f *Fetcher) {
		f.hostnameOverwrite = host
	}
}

// NewFetcher returns a Fetcher downloading with httpClient and staging
// through stager.
func NewFetcher(httpClient *retryablehttp.Client, stager *stage.Stager, opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: httpClient,
		stager:     stager,
		sink:       progress.Discard,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure brings the compressed artifact of r to the committed phase.
// A committed artifact is trusted as is, a staged one is verified and
// committed, and a missing one is downloaded, verified and committed.
func (f *Fetcher) Ensure(ctx context.Context, r catalog.Resource) (stage.Result, error) {
	return f.stager.StageThenCommit(ctx, r.CompressedArtifact(), func(ctx context.Context) (io.ReadCloser, error) {
		return f.open(ctx, r)
	})
}

// open sends the download request and returns the response body. Nothing
// is returned for non-success responses, so no staged file gets created.
func (f *Fetcher) open(ctx context.Context, r catalog.Resource) (io.ReadCloser, error) {
	artifactURL := r.URL
	if f.hostnameOverwrite != "" {
		u, err := url.Parse(artifactURL)
		if err != nil {
			return nil, &stage.NetworkError{Name: r.Name, URL: artifactURL, Err: err}
		}
		u.Host = f.hostnameOverwrite
		artifactURL = u.String()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, artifactURL, nil)
	if err != nil {
		return nil, &stage.NetworkError{Name: r.Name, URL: artifactURL, Err: fmt.Errorf("failed to create a new request: %w", err)}
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := f.httpClient.Do(req)
	if resp == nil {
		return nil, &stage.NetworkError{Name: r.Name, URL: artifactURL, Err: err}
	}
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain the body so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &stage.NetworkError{Name: r.Name, URL: artifactURL, StatusCode: resp.StatusCode, Err: err}
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	if f.maxDownloadSize > 0 && total > f.maxDownloadSize {
		resp.Body.Close()
		return nil, &stage.NetworkError{Name: r.Name, URL: artifactURL,
			Err: fmt.Errorf("artifact size %d exceeds the max download size of %d bytes", total, f.maxDownloadSize)}
	}

	return &responseBody{
		body:  resp.Body,
		r:     progress.NewReader(resp.Body, total, progress.Reporter(f.sink, progress.KindDownload, r.Name)),
		name:  r.Name,
		url:   artifactURL,
		limit: f.maxDownloadSize,
	}, nil
}

// responseBody reports read failures as network errors and enforces the
// max download size, since headers can lie.
type responseBody struct {
	body  io.Closer
	r     *progress.Reader
	name  string
	url   string
	limit int64
}

func (b *responseBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if b.limit > 0 && b.r.N() > b.limit {
		return n, &stage.NetworkError{Name: b.name, URL: b.url,
			Err: fmt.Errorf("artifact is greater than the max download size of %d bytes", b.limit)}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &stage.NetworkError{Name: b.name, URL: b.url, Err: err}
	}
	return n, err
}

func (b *responseBody) Close() error {
	return b.body.Close()
}
