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

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/poleshift/stager/config"
	"github.com/poleshift/stager/decompress"
	"github.com/poleshift/stager/fetch"
	"github.com/poleshift/stager/metrics"
	"github.com/poleshift/stager/pipeline"
	"github.com/poleshift/stager/stage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bring every resource of the catalog to its committed final location",
	Long: `Download, verify and decompress every resource of the catalog.
Committed files are left untouched, staged files are verified and
committed, and missing files are downloaded. Running the command again
after a successful run does no work.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := setupSignalHandler()
	opts := rootArgs.options
	log := rootArgs.log

	c, err := loadCatalog(opts)
	if err != nil {
		return err
	}
	maxDownloadSize, err := opts.MaxDownloadBytes()
	if err != nil {
		return err
	}

	// Keep stdout machine readable when emitting JSON progress.
	summaryOut := cmd.OutOrStdout()
	if opts.Progress == config.ProgressJSON {
		summaryOut = cmd.ErrOrStderr()
	}
	sink := newProgressSink(opts.Progress, log, cmd.OutOrStdout())

	stager := stage.New(
		stage.WithLogger(log.WithName("stage")),
		stage.WithProgressSink(sink),
	)
	httpClient := fetch.NewHTTPClient(opts.HTTPRetries, opts.HTTPTimeout, log.WithName("http"))
	fetcher := fetch.NewFetcher(httpClient, stager,
		fetch.WithProgressSink(sink),
		fetch.WithMaxDownloadSize(maxDownloadSize),
		fetch.WithHostnameOverwrite(opts.HostnameOverwrite),
	)
	decompressor := decompress.NewDecompressor(stager, decompress.WithProgressSink(sink))

	recorder := metrics.NewRecorder()
	registry := prometheus.NewRegistry()
	recorder.MustRegister(registry)

	orchestrator := pipeline.New(fetcher, decompressor,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(recorder),
		pipeline.WithProgressSink(sink),
		pipeline.WithConcurrency(opts.Concurrency),
	)

	log.Info("staging resources", "resources", c.Names(), "dir", opts.ResourceDir)
	start := time.Now()
	report, runErr := orchestrator.Run(ctx, c)
	if report == nil {
		report = &pipeline.Report{}
	}
	printReport(summaryOut, report, time.Since(start))

	if opts.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsTextfile, registry); err != nil {
			log.Error(err, "failed to write metrics", "path", opts.MetricsTextfile)
		}
	}

	if runErr != nil {
		return fmt.Errorf("%d of %d resources failed, first error: %w",
			len(report.Failed()), len(report.Resources), runErr)
	}
	return nil
}

func printReport(out io.Writer, report *pipeline.Report, elapsed time.Duration) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tDOWNLOAD\tDECOMPRESS\tSIZE\tDURATION\tREADY")
	for _, rr := range report.Resources {
		size := rr.Decompressed.Size
		if rr.Decompressed.Outcome == "" {
			size = rr.Compressed.Size
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			rr.Name,
			outcome(rr.Compressed),
			outcome(rr.Decompressed),
			humanize.IBytes(uint64(size)),
			rr.Duration.Round(time.Millisecond),
			rr.Ready(),
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\nWrote %s in %s.\n", humanize.IBytes(uint64(report.Written())), elapsed.Round(time.Millisecond))
}

func outcome(res stage.Result) string {
	if res.Outcome == "" {
		return "-"
	}
	return string(res.Outcome)
}
