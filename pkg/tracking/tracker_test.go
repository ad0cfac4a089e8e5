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

package tracking

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/content/contenttest"
	"github.com/depotdl/depotdl/pkg/depot"
)

func newTestTracker(t *testing.T, c *contenttest.Client) *Tracker {
	t.Helper()
	log, _ := test.NewNullLogger()
	s := depot.NewSession(c, content.Credentials{})
	s.Log = log
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop() })

	tr := NewTracker(Default(), depot.NewResolver(s))
	tr.Log = log
	return tr
}

func TestPopulateVersion(t *testing.T) {
	c := &contenttest.Client{
		Builds: map[string]uint32{"beta": 1701},
		Manifests: map[contenttest.DepotBranch]uint64{
			{DepotID: 250824, Branch: "beta"}: 10,
			{DepotID: 250821, Branch: "beta"}: 11,
			{DepotID: 250822, Branch: "beta"}: 12,
			{DepotID: 250823, Branch: "beta"}: 13,
		},
	}
	rec, err := newTestTracker(t, c).PopulateVersion(context.Background(), "beta", "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, uint32(1701), rec.BuildNumber)
	assert.Equal(t, "beta", rec.Branch)
	require.Len(t, rec.Depots, 4)
	for i, want := range []uint64{10, 11, 12, 13} {
		assert.Equal(t, want, rec.Depots[i].ManifestID)
	}
	for _, call := range c.CallsOf(contenttest.OpManifestID) {
		assert.Equal(t, "beta", call.Branch)
	}
}

func TestPopulateVersionPartialFailure(t *testing.T) {
	c := &contenttest.Client{
		Builds: map[string]uint32{"Public": 1700},
		Manifests: map[contenttest.DepotBranch]uint64{
			{DepotID: 250824, Branch: "Public"}: 10,
			{DepotID: 250823, Branch: "Public"}: 13,
		},
	}
	rec, err := newTestTracker(t, c).PopulateVersion(context.Background(), "Public", "1.2.3")
	require.Error(t, err)
	assert.True(t, depot.IsResolutionError(err))

	// every depot is attempted even after a failure
	assert.Len(t, c.CallsOf(contenttest.OpManifestID), 4)
	require.Len(t, rec.Depots, 4)
	assert.True(t, rec.Depot(Content).Resolved())
	assert.False(t, rec.Depot(Win32).Resolved())
	assert.False(t, rec.Depot(OSX).Resolved())
	assert.Equal(t, uint64(13), rec.Depot(Linux).ManifestID)

	platforms := rec.Platforms()
	require.Len(t, platforms, 1)
	assert.Equal(t, Linux, platforms[0].Role)
}

func TestPopulateVersionUnknownBranch(t *testing.T) {
	c := &contenttest.Client{}
	rec, err := newTestTracker(t, c).PopulateVersion(context.Background(), "nightly", "0.1")
	require.Error(t, err)
	assert.Equal(t, uint32(0), rec.BuildNumber)
	require.Len(t, rec.Depots, 4)
	for _, d := range rec.Depots {
		assert.Equal(t, InvalidManifestID, d.ManifestID)
	}
}
