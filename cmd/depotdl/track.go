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

const trackDesc = `
Record and download the current release of each live branch.

For every branch the version marker of the content depot is read, the
manifests of all depots are resolved and written as a version record, and
each resolved platform depot is downloaded into its release directory.

A branch that fails is reported and the next branch is still tracked.
`

func newTrackCmd(cfg *action.Configuration, setup configInit, out io.Writer) *cobra.Command {
	client := action.NewTrack(cfg)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "record and download the current release of each branch",
		Long:  trackDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(true); err != nil {
				return err
			}
			results, err := client.Run(context.Background())
			if err != nil {
				return err
			}
			return writeBranchResults(out, results)
		},
	}

	f := cmd.Flags()
	f.StringVar(&client.Root, "root", client.Root, "directory the work and release directories are created in")
	f.StringSliceVar(&client.Branches, "branch", nil, "branches to track, in order; the branches of the tracked line when omitted")
	f.DurationVar(&client.LockTimeout, "lock-timeout", client.LockTimeout, "time to wait for another run using the same root")
	settings.AddTransferFlags(f)

	return cmd
}

func writeBranchResults(out io.Writer, results []*action.BranchResult) error {
	return action.Table.Write(out, nil, func(tbl *uitable.Table) {
		tbl.AddRow("BRANCH", "VERSION", "BUILD", "ITEM", "STATUS")
		for _, r := range results {
			if r.Err != nil {
				tbl.AddRow(r.Branch, "-", "-", "-", status(r.Err))
				continue
			}
			build := "-"
			if r.Record != nil && r.Record.BuildNumber != 0 {
				build = fmt.Sprint(r.Record.BuildNumber)
			}
			if r.Persist != nil {
				tbl.AddRow(r.Branch, r.Version, build, r.Persist.Canonical, created(r.Persist.CanonicalCreated))
				tbl.AddRow(r.Branch, r.Version, build, r.Persist.Alias, created(r.Persist.AliasCreated))
			}
			for _, w := range r.Warnings {
				tbl.AddRow(r.Branch, r.Version, build, "-", fmt.Sprintf("warning: %v", w))
			}
			for _, p := range r.Platforms {
				tbl.AddRow(r.Branch, r.Version, build, p.Name, status(p.Err))
			}
		}
	})
}

func created(ok bool) string {
	if ok {
		return "written"
	}
	return "kept"
}
