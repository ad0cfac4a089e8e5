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
	"bytes"
	"strings"
	"testing"

	shellwords "github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"

	"github.com/depotdl/depotdl/pkg/action"
	"github.com/depotdl/depotdl/pkg/cli"
	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/content/contenttest"
	"github.com/depotdl/depotdl/pkg/storage"
	"github.com/depotdl/depotdl/pkg/storage/driver"
	"github.com/depotdl/depotdl/pkg/tracking"
)

func storageFixture() *storage.Storage {
	return storage.Init(driver.NewMemory(), tracking.Default())
}

// steamClient answers like the content service for the built-in line.
func steamClient() *contenttest.Client {
	manifests := map[contenttest.DepotBranch]uint64{}
	for _, branch := range []string{"Public", "beta"} {
		offset := uint64(0)
		if branch == "beta" {
			offset = 100
		}
		for i, depotID := range []uint32{250824, 250821, 250822, 250823} {
			manifests[contenttest.DepotBranch{DepotID: depotID, Branch: branch}] = offset + uint64(i) + 1
		}
	}
	return &contenttest.Client{
		Builds:    map[string]uint32{"Public": 1700, "beta": 1701},
		Manifests: manifests,
		Files: map[uint32]map[string]string{
			250824: {"bin/version.txt": "1.2.3\n"},
			250821: {"bin/win32/vrcmd.exe": "win"},
			250822: {"bin/osx32/vrcmd": "osx"},
			250823: {"bin/linux64/vrcmd": "linux"},
		},
	}
}

func executeActionCommand(t *testing.T, client *contenttest.Client, cmd string) (string, error) {
	_, output, err := executeActionCommandC(t, client, storageFixture(), "", cmd)
	return output, err
}

// executeActionCommandC runs cmd against store and, when client is not nil,
// the content service client. in is what a password prompt reads.
func executeActionCommandC(t *testing.T, client *contenttest.Client, store *storage.Storage, in, cmd string) (*cobra.Command, string, error) {
	t.Helper()

	args, err := shellwords.Parse(cmd)
	if err != nil {
		return nil, "", err
	}

	settings = cli.New()
	settings.Driver = "memory"
	settings.Debug = false
	if client != nil {
		orig := newContentClient
		newContentClient = func(logrus.FieldLogger) (content.Client, error) { return client, nil }
		t.Cleanup(func() { newContentClient = orig })
	}

	buf := new(bytes.Buffer)
	logger, _ := test.NewNullLogger()
	actionConfig := &action.Configuration{
		Records:    store,
		Definition: store.Definition,
	}

	root, err := newRootCmd(actionConfig, logger, strings.NewReader(in), buf, args)
	if err != nil {
		return nil, "", err
	}

	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	c, err := root.ExecuteC()

	return c, buf.String(), err
}
