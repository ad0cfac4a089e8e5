/*
Copyright The Helm Authors.

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

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/depotdl/depotdl/cmd/depotdl/require"
	"github.com/depotdl/depotdl/pkg/action"
)

const legacyDesc = `
Download every historical release of the tracked line, each pinned to its
recorded manifest, into one directory per release label.
`

func newLegacyCmd(cfg *action.Configuration, setup configInit, out io.Writer) *cobra.Command {
	client := action.NewLegacy(cfg)

	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "download the historical releases of the tracked line",
		Long:  legacyDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(true); err != nil {
				return err
			}
			results, err := client.Run(context.Background())
			if err != nil {
				return err
			}
			return writeResults(out, results)
		},
	}

	f := cmd.Flags()
	f.StringVar(&client.Root, "root", client.Root, "directory the release directories are created in")
	settings.AddTransferFlags(f)

	return cmd
}

// writeResults prints one row per downloaded item.
func writeResults(out io.Writer, results []*action.Result) error {
	return action.Table.Write(out, nil, func(tbl *uitable.Table) {
		tbl.AddRow("NAME", "DIRECTORY", "STATUS")
		for _, r := range results {
			tbl.AddRow(r.Name, r.Dir, status(r.Err))
		}
	})
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	return fmt.Sprintf("failed: %v", err)
}
