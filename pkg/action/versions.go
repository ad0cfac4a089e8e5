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

package action

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/depotdl/depotdl/pkg/storage"
)

// Versions is the action for listing recorded releases.
type Versions struct {
	cfg *Configuration
}

// NewVersions creates a new Versions object with the given configuration.
func NewVersions(cfg *Configuration) *Versions {
	return &Versions{cfg: cfg}
}

// Run returns the recorded releases, oldest first.
func (v *Versions) Run() ([]*storage.Version, error) {
	versions, err := v.cfg.Records.Versions()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versionLess(versions[i], versions[j])
	})
	return versions, nil
}

// versionLess orders semantic versions by precedence. Other labels sort
// before them, by build number then label.
func versionLess(a, b *storage.Version) bool {
	av, aerr := semver.NewVersion(a.Record.Version)
	bv, berr := semver.NewVersion(b.Record.Version)
	switch {
	case aerr == nil && berr == nil && !av.Equal(bv):
		return av.LessThan(bv)
	case aerr == nil && berr != nil:
		return false
	case aerr != nil && berr == nil:
		return true
	}
	if a.Record.BuildNumber != b.Record.BuildNumber {
		return a.Record.BuildNumber < b.Record.BuildNumber
	}
	return a.Record.Version < b.Record.Version
}
