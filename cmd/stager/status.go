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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/poleshift/stager/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the phase of every artifact of the catalog",
	Long: `Print the phase of every artifact of the catalog as found on disk:
absent, staged or committed. No network access is made and no file
is hashed.`,
	RunE: runStatus,
}

var statusCmdFlags struct {
	check bool
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusCmdFlags.check, "check", false,
		"Exit with an error when a resource is not ready.")
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := loadCatalog(rootArgs.options)
	if err != nil {
		return err
	}

	statuses, err := pipeline.New(nil, nil).Status(c)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tCOMPRESSED\tDECOMPRESSED\tREADY")
	var notReady int
	for _, s := range statuses {
		decompressed := "-"
		if s.Decompressed != nil {
			decompressed = s.Decompressed.Phase.String()
		}
		if !s.Ready() {
			notReady++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.Name, s.Compressed.Phase, decompressed, s.Ready())
	}
	w.Flush()

	if statusCmdFlags.check && notReady > 0 {
		return fmt.Errorf("%d of %d resources are not ready", notReady, len(statuses))
	}
	return nil
}
