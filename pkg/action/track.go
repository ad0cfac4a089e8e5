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
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/gofrs/flock"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/depotdl/depotdl/pkg/depot"
	"github.com/depotdl/depotdl/pkg/filter"
	"github.com/depotdl/depotdl/pkg/storage"
	"github.com/depotdl/depotdl/pkg/tracking"
)

// Track is the action for recording and fetching the current release of
// each requested branch.
type Track struct {
	cfg *Configuration

	// Root is the directory the work and release directories live in.
	Root string
	// Branches are processed in order. Empty means the branches of the
	// definition.
	Branches []string
	// LockTimeout bounds the wait for another run holding the work directory.
	LockTimeout time.Duration
}

// BranchResult is the outcome of tracking one branch.
type BranchResult struct {
	Branch  string
	Version string
	Record  *tracking.VersionRecord
	Persist *storage.PersistOutcome
	// Warnings are failures that did not stop the branch: unresolved depots
	// and metadata that could not be written.
	Warnings []error
	// Platforms holds one result per resolved platform.
	Platforms []*Result
	// Err is the failure that stopped the branch before its platforms were
	// downloaded.
	Err error
}

// NewTrack creates a new Track object with the given configuration.
func NewTrack(cfg *Configuration) *Track {
	return &Track{cfg: cfg, Root: ".", LockTimeout: 30 * time.Second}
}

// Run tracks every branch in order within one session. A failure on one
// branch is recorded in its result and the next branch is still attempted.
func (t *Track) Run(ctx context.Context) ([]*BranchResult, error) {
	def := t.cfg.Definition
	branches := t.Branches
	if len(branches) == 0 {
		branches = def.LiveBranches()
	}

	if err := os.MkdirAll(t.Root, 0755); err != nil {
		return nil, err
	}
	work, err := securejoin.SecureJoin(t.Root, def.WorkDir())
	if err != nil {
		return nil, err
	}

	// Acquire a file lock for process synchronization
	fileLock := flock.New(work + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, t.LockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, time.Second)
	if err == nil && locked {
		defer fileLock.Unlock()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to lock %s", work)
	}

	log := t.cfg.runLogger()
	tracker := tracking.NewTracker(def, depot.NewResolver(t.cfg.Session))
	tracker.Log = log

	var results []*BranchResult
	err = t.cfg.Session.Run(ctx, func(ctx context.Context) error {
		for _, branch := range branches {
			results = append(results, t.branch(ctx, log.WithField("branch", branch), tracker, work, branch))
		}
		log.Info("Shutting down...")
		return nil
	})
	return results, err
}

func (t *Track) branch(ctx context.Context, log logrus.FieldLogger, tracker *tracking.Tracker, work, branch string) *BranchResult {
	def := t.cfg.Definition
	res := &BranchResult{Branch: branch}

	log.Info("Getting current release version number")
	version, err := t.readVersion(ctx, log, work, branch)
	if err != nil {
		res.Err = err
		log.WithError(err).Warn("unable to determine the current version, skipping branch")
		return res
	}
	res.Version = version
	log = log.WithField("label", version)
	log.Infof("Current %s %s version is known as v%s", branch, def.Name, version)

	log.Info("Retrieving other metadata...")
	rec, err := tracker.PopulateVersion(ctx, branch, version)
	res.Record = rec
	if err != nil {
		res.Warnings = append(res.Warnings, flatten(err)...)
	}

	log.Infof("Writing metadata to %s...", def.RecordName(version))
	res.Persist, err = t.cfg.Records.Persist(rec, branch)
	if err != nil {
		for _, w := range flatten(err) {
			log.WithError(w).Warn("Warning: metadata could not be written")
			res.Warnings = append(res.Warnings, w)
		}
	}

	conf := t.cfg.Content
	conf.Files = nil
	conf.DownloadAllPlatforms = true
	for _, entry := range rec.Platforms() {
		target := depot.NewTarget(def.AppID)
		target.DepotID = entry.DepotID
		target.ManifestID = entry.ManifestID
		target.Branch = branch

		name := def.PlatformDir(version, entry.Role)
		dir, err := securejoin.SecureJoin(t.Root, name)
		if err != nil {
			res.Platforms = append(res.Platforms, &Result{Name: name, Target: target, Err: err})
			continue
		}
		res.Platforms = append(res.Platforms, t.cfg.download(ctx, log, name, target, dir, conf))
	}
	return res
}

// readVersion downloads the marker file of the content depot into a fresh
// work directory and returns its trimmed contents.
func (t *Track) readVersion(ctx context.Context, log logrus.FieldLogger, work, branch string) (string, error) {
	def := t.cfg.Definition
	// a marker left by an earlier run must never be read back
	if err := os.RemoveAll(work); err != nil {
		return "", err
	}

	target := depot.NewTarget(def.AppID)
	target.DepotID = def.ContentDepot
	target.Branch = branch

	conf := t.cfg.Content
	conf.Files = filter.Literals(def.Marker)
	conf.DownloadManifestOnly = false

	res := t.cfg.download(ctx, log, def.WorkDir(), target, work, conf)
	if res.Err != nil {
		return "", res.Err
	}

	marker, err := securejoin.SecureJoin(work, filepath.FromSlash(filter.Normalize(def.Marker)))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(marker)
	if err != nil {
		return "", errors.Wrap(err, "unable to read version marker")
	}
	version := strings.TrimSpace(string(data))
	if err := tracking.ValidateLabel(version); err != nil {
		return "", err
	}
	return version, nil
}

func flatten(err error) []error {
	if merr, ok := err.(*multierror.Error); ok {
		return merr.Errors
	}
	return []error{err}
}
