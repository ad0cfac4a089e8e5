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
	"context"

	"github.com/pkg/errors"

	"github.com/depotdl/depotdl/pkg/content"
)

// Resolver answers build and manifest queries through an active session.
type Resolver struct {
	Session *Session
}

// NewResolver returns a resolver bound to s.
func NewResolver(s *Session) *Resolver {
	return &Resolver{Session: s}
}

// BuildNumber returns the build number currently on branch.
func (r *Resolver) BuildNumber(ctx context.Context, appID uint32, branch string) (uint32, error) {
	if branch == "" {
		branch = NewTarget(appID).Branch
	}
	fail := func(err error) error {
		return &ResolutionError{AppID: appID, DepotID: InvalidDepotID, Branch: branch, Err: err}
	}
	if !r.Session.Active() {
		return 0, fail(ErrSessionInactive)
	}
	build, err := r.Session.Client().BuildNumber(ctx, appID, branch)
	if err != nil {
		return 0, fail(err)
	}
	return build, nil
}

// Manifest returns the manifest of depotID current on branch. A forced id
// other than zero or InvalidManifestID is returned as is without querying.
func (r *Resolver) Manifest(ctx context.Context, appID, depotID uint32, branch string, forced uint64) (uint64, error) {
	if content.ManifestForced(forced) {
		return forced, nil
	}
	if branch == "" {
		branch = NewTarget(appID).Branch
	}
	fail := func(err error) error {
		return &ResolutionError{AppID: appID, DepotID: depotID, Branch: branch, Err: err}
	}
	if !r.Session.Active() {
		return InvalidManifestID, fail(ErrSessionInactive)
	}
	id, err := r.Session.Client().ManifestID(ctx, depotID, appID, branch)
	if err != nil {
		return InvalidManifestID, fail(err)
	}
	if id == InvalidManifestID || id == 0 {
		return InvalidManifestID, fail(errors.New("no manifest published"))
	}
	return id, nil
}

// Target resolves the manifest a target would download.
func (r *Resolver) Target(ctx context.Context, t Target) (uint64, error) {
	return r.Manifest(ctx, t.AppID, t.DepotID, t.BranchOrDefault(), t.ManifestID)
}
