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

// Package config binds the settings of a staging run to command line
// flags, falling back to environment variables.
package config

import (
	"os"

	"github.com/spf13/pflag"
)

const (
	flagResourceDir    = "resource-dir"
	envResourceDir     = "RESOURCE_DIR"
	defaultResourceDir = "resources"

	flagCatalog = "catalog"
	envCatalog  = "STAGER_CATALOG"

	flagHTTPRetries = "http-retries"
	flagHTTPTimeout = "http-timeout"

	flagMaxDownloadSize = "max-download-size"

	flagHostnameOverwrite = "hostname-overwrite"
	envHostnameOverwrite  = "STAGER_HOSTNAME_OVERWRITE"

	flagConcurrency = "concurrency"

	flagProgress    = "progress"
	defaultProgress = ProgressLog

	flagMetricsTextfile = "metrics-textfile"
)

// BindFlags will parse the given pflag.FlagSet and set the Options accordingly.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.ResourceDir, flagResourceDir,
		envOrDefault(envResourceDir, defaultResourceDir),
		"The directory the database files are downloaded and decompressed into.")

	fs.StringVar(&o.Catalog, flagCatalog,
		envOrDefault(envCatalog, ""),
		"The path to a YAML catalog of resources. The built-in catalog is used when empty.")

	fs.IntVar(&o.HTTPRetries, flagHTTPRetries, 0,
		"The number of times a failed download request is retried.")

	fs.DurationVar(&o.HTTPTimeout, flagHTTPTimeout, 0,
		"The timeout of a download request, including reading the body. Zero means no timeout.")

	fs.StringVar(&o.MaxDownloadSize, flagMaxDownloadSize, "",
		"The maximum size of a download, e.g. '50GiB'. Unlimited when empty.")

	fs.StringVar(&o.HostnameOverwrite, flagHostnameOverwrite,
		envOrDefault(envHostnameOverwrite, ""),
		"Replace the hostname of every download URL, e.g. to use a mirror.")

	fs.IntVar(&o.Concurrency, flagConcurrency, 0,
		"The maximum number of resources processed at once. Zero means no limit.")

	fs.StringVar(&o.Progress, flagProgress, defaultProgress,
		"How progress is reported. Can be 'log', 'json' or 'none'.")

	fs.StringVar(&o.MetricsTextfile, flagMetricsTextfile, "",
		"Write the run metrics to this file in the Prometheus text format.")
}

// envOrDefault returns the value of the environment variable named by the key.
// If the variable is empty or not present, it returns the defaultValue instead.
func envOrDefault(envName, defaultValue string) string {
	ret := os.Getenv(envName)
	if ret != "" {
		return ret
	}

	return defaultValue
}
