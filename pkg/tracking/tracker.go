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

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/depotdl/depotdl/pkg/depot"
)

// Tracker resolves version records of one tracked line.
type Tracker struct {
	Definition *Definition
	Resolver   *depot.Resolver
	Log        logrus.FieldLogger
}

// NewTracker returns a tracker for d resolving through r.
func NewTracker(d *Definition, r *depot.Resolver) *Tracker {
	return &Tracker{Definition: d, Resolver: r, Log: logrus.StandardLogger()}
}

// PopulateVersion resolves the build number of branch and the manifest of
// every depot of the line on it. Every depot is attempted: the returned
// record always holds one entry per role, and depots that failed to resolve
// keep InvalidManifestID. The error, if any, lists those failures and does
// not invalidate the record.
func (t *Tracker) PopulateVersion(ctx context.Context, branch, version string) (*VersionRecord, error) {
	d := t.Definition
	rec := NewVersionRecord(d, branch, version)
	log := t.Log.WithFields(logrus.Fields{"app": d.AppID, "branch": branch, "label": version})

	var errs *multierror.Error
	build, err := t.Resolver.BuildNumber(ctx, d.AppID, branch)
	if err != nil {
		log.WithError(err).Warn("unable to resolve build number")
		errs = multierror.Append(errs, err)
	}
	rec.BuildNumber = build

	for i := range rec.Depots {
		entry := &rec.Depots[i]
		// never carry a forced manifest into a tracking pass
		id, err := t.Resolver.Manifest(ctx, d.AppID, entry.DepotID, branch, InvalidManifestID)
		if err != nil {
			log.WithError(err).WithField("depot", entry.DepotID).Warnf("%s depot unavailable for this version", entry.Role)
			errs = multierror.Append(errs, err)
			continue
		}
		entry.ManifestID = id
		log.WithField("depot", entry.DepotID).Debugf("%s manifest %d", entry.Role, id)
	}
	return rec, errs.ErrorOrNil()
}
