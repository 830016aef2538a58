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

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/poleshift/stager/stage"
)

// Progress modes.
const (
	ProgressLog  = "log"
	ProgressJSON = "json"
	ProgressNone = "none"
)

// Options contains the configuration settings of a staging run.
type Options struct {
	// ResourceDir is the directory the artifacts are staged and committed in.
	ResourceDir string `json:"resourceDir"`

	// Catalog is the path to the catalog file. Empty selects the built-in catalog.
	Catalog string `json:"catalog"`

	// HTTPRetries is the number of times a failed download request is retried.
	HTTPRetries int `json:"httpRetries"`

	// HTTPTimeout bounds every download request, zero means no timeout.
	HTTPTimeout time.Duration `json:"httpTimeout"`

	// MaxDownloadSize is the maximum size of a download in human readable
	// form, e.g. 50GiB. Empty disables the limit.
	MaxDownloadSize string `json:"maxDownloadSize"`

	// HostnameOverwrite replaces the host of every download URL.
	HostnameOverwrite string `json:"hostnameOverwrite"`

	// Concurrency is the maximum number of resources processed at once,
	// zero means one task per resource.
	Concurrency int `json:"concurrency"`

	// Progress selects how progress is reported: log, json or none.
	Progress string `json:"progress"`

	// MetricsTextfile is the file the run metrics are written to in the
	// Prometheus text format. Empty disables metrics.
	MetricsTextfile string `json:"metricsTextfile"`
}

// Validate checks the Options, returning a *stage.ConfigurationError.
func (o *Options) Validate() error {
	var errs []error
	if o.ResourceDir == "" {
		errs = append(errs, fmt.Errorf("--%s must not be empty", flagResourceDir))
	}
	if o.HTTPRetries < 0 {
		errs = append(errs, fmt.Errorf("--%s must not be negative", flagHTTPRetries))
	}
	if o.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("--%s must not be negative", flagHTTPTimeout))
	}
	if o.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("--%s must not be negative", flagConcurrency))
	}
	if _, err := o.MaxDownloadBytes(); err != nil {
		errs = append(errs, err)
	}
	switch o.Progress {
	case ProgressLog, ProgressJSON, ProgressNone:
	default:
		errs = append(errs, fmt.Errorf("--%s must be one of '%s', '%s' or '%s', got '%s'",
			flagProgress, ProgressLog, ProgressJSON, ProgressNone, o.Progress))
	}
	if err := errors.Join(errs...); err != nil {
		return &stage.ConfigurationError{Source: "flags", Err: err}
	}
	return nil
}

// MaxDownloadBytes returns MaxDownloadSize in bytes, zero when no limit
// is set.
func (o *Options) MaxDownloadBytes() (int64, error) {
	if o.MaxDownloadSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(o.MaxDownloadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s '%s': %w", flagMaxDownloadSize, o.MaxDownloadSize, err)
	}
	return int64(n), nil
}
