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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/poleshift/stager/catalog"
	"github.com/poleshift/stager/config"
	"github.com/poleshift/stager/logger"
	"github.com/poleshift/stager/progress"
)

var rootCmd = &cobra.Command{
	Use:           "stager",
	Short:         "Download, verify and decompress the database files of a resource catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootArgs.log = logger.NewLogger(rootArgs.logOptions)
		return rootArgs.options.Validate()
	},
}

var rootArgs struct {
	options    config.Options
	logOptions logger.Options
	log        logr.Logger
}

func init() {
	rootArgs.options.BindFlags(rootCmd.PersistentFlags())
	rootArgs.logOptions.BindFlags(rootCmd.PersistentFlags())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupSignalHandler returns a context canceled on SIGINT or SIGTERM.
// A second signal terminates the process.
func setupSignalHandler() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}

// loadCatalog reads the configured catalog, or the built-in one, and
// resolves it against the resource directory.
func loadCatalog(opts config.Options) (*catalog.Catalog, error) {
	c := catalog.Default()
	if opts.Catalog != "" {
		var err error
		if c, err = catalog.Load(opts.Catalog); err != nil {
			return nil, err
		}
	}
	if err := c.Resolve(opts.ResourceDir); err != nil {
		return nil, err
	}
	return c, nil
}

// newProgressSink returns the sink selected by mode. JSON events are
// written to out.
func newProgressSink(mode string, log logr.Logger, out io.Writer) progress.Sink {
	switch mode {
	case config.ProgressJSON:
		return progress.NewJSONSink(out)
	case config.ProgressNone:
		return progress.Discard
	default:
		return progress.NewLogSink(log.WithName("progress"), 10)
	}
}
