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

package depot

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/filter"
)

func TestTargetValidate(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		err    string
	}{
		{"app only", NewTarget(250820), ""},
		{"missing app", NewTarget(InvalidAppID), "--app not specified"},
		{
			name:   "manifest without depot",
			target: Target{AppID: 250820, DepotID: InvalidDepotID, ManifestID: 42},
			err:    "--manifest requires --depot",
		},
		{
			name:   "zero manifest without depot",
			target: Target{AppID: 250820, DepotID: InvalidDepotID, ManifestID: 0},
		},
		{
			name:   "manifest with depot",
			target: Target{AppID: 250820, DepotID: 250821, ManifestID: 42},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestTargetRequest(t *testing.T) {
	cfg := content.NewConfig()
	cfg.Files = filter.Literals("bin/version.txt")
	cfg.ManifestID = 99

	tgt := Target{AppID: 250820, DepotID: 250821, ManifestID: InvalidManifestID, ForceDepot: true}
	req := tgt.Request(cfg, "/tmp/out")

	assert.Equal(t, "Public", req.Branch)
	assert.Equal(t, "/tmp/out", req.Config.InstallDirectory)
	assert.Equal(t, InvalidManifestID, req.Config.ManifestID)
	assert.True(t, req.ForceDepot)
	assert.Equal(t, uint64(99), cfg.ManifestID, "caller config must not change")
}

func TestTargetString(t *testing.T) {
	tgt := Target{AppID: 250820, DepotID: 250821, ManifestID: 7}
	assert.Equal(t, "app 250820 depot 250821 manifest 7", tgt.String())
	assert.Equal(t, "app 250820 branch Public", NewTarget(250820).String())

	zero := Target{AppID: 250820, DepotID: 250821, ManifestID: 0, Branch: "beta"}
	_, forced := zero.Forced()
	assert.False(t, forced)
	assert.Equal(t, "app 250820 depot 250821 branch beta", zero.String())
}

func TestErrorPredicates(t *testing.T) {
	base := errors.New("x")
	wrapped := errors.Wrap(&TransferError{Target: NewTarget(1), Dir: "d", Err: base}, "outer")
	assert.True(t, IsTransferError(wrapped))
	assert.False(t, IsResolutionError(wrapped))
	assert.ErrorIs(t, wrapped, base)
}
