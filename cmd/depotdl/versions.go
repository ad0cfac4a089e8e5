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
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/depotdl/depotdl/cmd/depotdl/require"
	"github.com/depotdl/depotdl/pkg/action"
	"github.com/depotdl/depotdl/pkg/storage"
	"github.com/depotdl/depotdl/pkg/tracking"
)

const versionsDesc = `
List the releases recorded by 'depotdl track', oldest first, with the
manifest of each depot and the branches the release was seen on.
`

func newVersionsCmd(cfg *action.Configuration, setup configInit, out io.Writer) *cobra.Command {
	client := action.NewVersions(cfg)
	var outfmt action.OutputFormat

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "list recorded releases",
		Long:  versionsDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup(false); err != nil {
				return err
			}
			versions, err := client.Run()
			if err != nil {
				return err
			}
			return writeVersions(out, outfmt, versions)
		},
	}

	bindOutputFlag(cmd, &outfmt)
	return cmd
}

type versionElement struct {
	Version     string   `json:"version"`
	BuildNumber uint32   `json:"buildNumber"`
	Content     string   `json:"content"`
	Win32       string   `json:"win32"`
	OSX         string   `json:"osx"`
	Linux       string   `json:"linux"`
	Branches    []string `json:"branches,omitempty"`
}

func writeVersions(out io.Writer, format action.OutputFormat, versions []*storage.Version) error {
	elements := make([]versionElement, 0, len(versions))
	for _, v := range versions {
		r := v.Record
		elements = append(elements, versionElement{
			Version:     r.Version,
			BuildNumber: r.BuildNumber,
			Content:     manifestString(r.Depot(tracking.Content)),
			Win32:       manifestString(r.Depot(tracking.Win32)),
			OSX:         manifestString(r.Depot(tracking.OSX)),
			Linux:       manifestString(r.Depot(tracking.Linux)),
			Branches:    v.Branches,
		})
	}

	return format.Write(out, elements, func(tbl *uitable.Table) {
		tbl.AddRow("VERSION", "BUILD", "CONTENT", "WIN32", "OSX", "LINUX", "BRANCHES")
		for _, e := range elements {
			tbl.AddRow(e.Version, e.BuildNumber, e.Content, e.Win32, e.OSX, e.Linux, strings.Join(e.Branches, ","))
		}
	})
}

// manifestString renders an unresolved manifest as "-".
func manifestString(d tracking.DepotVersion) string {
	if !d.Resolved() {
		return "-"
	}
	return fmt.Sprint(d.ManifestID)
}
