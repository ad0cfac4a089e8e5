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
	"io"

	"github.com/spf13/cobra"

	"github.com/depotdl/depotdl/cmd/depotdl/require"
	"github.com/depotdl/depotdl/pkg/action"
	"github.com/depotdl/depotdl/pkg/content"
)

const downloadDesc = `
Download one application, one of its depots, or a fixed manifest of a depot.

Without --depot every depot of the application matching this platform is
downloaded. --manifest pins a manifest instead of the one currently on the
branch and requires --depot.

The download is reported per item: a failed transfer is listed in the output
and does not change the exit status.
`

func newDownloadCmd(cfg *action.Configuration, setup configInit, out io.Writer) *cobra.Command {
	client := action.NewDownload(cfg)
	var (
		appID      uint32
		depotID    uint32
		manifestID uint64
	)

	cmd := &cobra.Command{
		Use:   "download --app ID [--depot ID [--manifest ID]]",
		Short: "download an application, depot or manifest",
		Long:  downloadDesc,
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("app") {
				client.Target.AppID = appID
			}
			if f.Changed("depot") {
				client.Target.DepotID = depotID
			}
			if f.Changed("manifest") {
				client.Target.ManifestID = manifestID
			}
			if err := client.Target.Validate(); err != nil {
				return err
			}
			if err := setup(true); err != nil {
				return err
			}

			res, err := client.Run(context.Background())
			if err != nil {
				return err
			}
			return writeResults(out, []*action.Result{res})
		},
	}

	f := cmd.Flags()
	f.Uint32Var(&appID, "app", 0, "application to download")
	f.Uint32Var(&depotID, "depot", 0, "depot to download; all depots of the application when omitted")
	f.Uint64Var(&manifestID, "manifest", 0, "manifest to download instead of the current one; requires --depot")
	f.StringVar(&client.Target.Branch, "branch", content.DefaultBranch, "branch to download from")
	f.StringVar(&client.Dir, "dir", action.DefaultInstallDir, "directory to install into")
	f.StringVar(&client.FileList, "filelist", "", "file with one case-insensitive pattern per line restricting what is downloaded; prefix an entry with glob: to match by glob")
	f.BoolVar(&client.AllPlatforms, "all-platforms", false, "download depots of every platform, not only this one")
	f.BoolVar(&client.ManifestOnly, "manifest-only", false, "write the manifest listing instead of downloading files")
	f.BoolVar(&client.VerifyAll, "verify-all", false, "checksum every existing file instead of trusting sizes")
	f.BoolVar(&client.Target.ForceDepot, "force-depot", false, "download the depot even when the account is not entitled to it")
	settings.AddTransferFlags(f)

	return cmd
}
