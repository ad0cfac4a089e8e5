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
	"context"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/depotdl/depotdl/pkg/depot"
)

// Legacy is the action for fetching the fixed list of historical releases.
type Legacy struct {
	cfg *Configuration

	// Root is the directory release directories are created in.
	Root string
}

// NewLegacy creates a new Legacy object with the given configuration.
func NewLegacy(cfg *Configuration) *Legacy {
	return &Legacy{cfg: cfg, Root: "."}
}

// Run downloads every historical release, in order, each pinned to its
// manifest. A failed release does not stop the ones after it; the results
// hold one entry per release.
func (l *Legacy) Run(ctx context.Context) ([]*Result, error) {
	def := l.cfg.Definition
	if def.Legacy == nil || len(def.Legacy.Releases) == 0 {
		return nil, &depot.ConfigurationError{Reason: "no legacy releases defined for " + def.Name}
	}
	depotID := def.Legacy.DepotID
	if depotID == 0 {
		depotID = def.Win32
	}
	log := l.cfg.runLogger()

	var results []*Result
	err := l.cfg.Session.Run(ctx, func(ctx context.Context) error {
		for _, rel := range def.Legacy.Releases {
			t := depot.NewTarget(def.AppID)
			t.DepotID = depotID
			t.ManifestID = rel.ManifestID

			dir, err := securejoin.SecureJoin(l.Root, def.LegacyDir(rel.Label))
			if err != nil {
				results = append(results, &Result{Name: rel.Label, Target: t, Err: err})
				continue
			}
			results = append(results, l.cfg.download(ctx, log, rel.Label, t, dir, l.cfg.Content))
		}
		log.Info("Shutting down...")
		return nil
	})
	return results, err
}
