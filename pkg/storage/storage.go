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

package storage // import "github.com/depotdl/depotdl/pkg/storage"

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/depotdl/depotdl/pkg/storage/driver"
	"github.com/depotdl/depotdl/pkg/tracking"
)

// Storage writes version records of one tracked line through a driver.
type Storage struct {
	driver.Driver
	Definition *tracking.Definition

	Log func(string, ...interface{})
}

// Init initializes a new storage backend with the driver d. If d is nil, the
// default in-memory driver is used.
func Init(d driver.Driver, def *tracking.Definition) *Storage {
	if d == nil {
		d = driver.NewMemory()
	}
	if def == nil {
		def = tracking.Default()
	}
	return &Storage{
		Driver:     d,
		Definition: def,
		Log:        func(_ string, _ ...interface{}) {},
	}
}

// PersistError is a failure to write one metadata artifact. It never aborts
// a run and is reported as a warning.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("unable to persist %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// PersistOutcome tells what a Persist call did with each artifact.
type PersistOutcome struct {
	Canonical string
	Alias     string
	// CanonicalCreated and AliasCreated are false when the artifact already
	// existed or could not be written.
	CanonicalCreated bool
	AliasCreated     bool
}

// Persist writes rec under its canonical name and under the alias of
// branch. Names that already exist are left untouched and count as
// success. The alias is a copy of whichever canonical record is stored once
// the first step is over, so concurrent writers of one version agree. Any
// other failure is returned as a *multierror.Error of *PersistError.
func (s *Storage) Persist(rec *tracking.VersionRecord, branch string) (*PersistOutcome, error) {
	out := &PersistOutcome{
		Canonical: s.Definition.RecordName(rec.Version),
		Alias:     s.Definition.AliasName(rec.Version, branch),
	}
	var errs *multierror.Error
	if err := tracking.ValidateLabel(rec.Version); err != nil {
		errs = multierror.Append(errs, &PersistError{Key: out.Canonical, Err: err})
		return out, errs.ErrorOrNil()
	}
	if err := tracking.ValidateLabel(branch); err != nil {
		errs = multierror.Append(errs, &PersistError{Key: out.Alias, Err: errors.Wrap(err, "invalid branch")})
		branch = ""
	}

	body, err := tracking.Encode(rec)
	if err != nil {
		errs = multierror.Append(errs, &PersistError{Key: out.Canonical, Err: err})
		return out, errs.ErrorOrNil()
	}
	out.CanonicalCreated, err = s.create(out.Canonical, body)
	if err != nil {
		errs = multierror.Append(errs, &PersistError{Key: out.Canonical, Err: err})
	}
	if branch == "" {
		return out, errs.ErrorOrNil()
	}

	stored, err := s.Get(out.Canonical)
	if err != nil {
		errs = multierror.Append(errs, &PersistError{Key: out.Alias, Err: errors.Wrapf(err, "unable to copy %s", out.Canonical)})
		return out, errs.ErrorOrNil()
	}
	out.AliasCreated, err = s.create(out.Alias, stored)
	if err != nil {
		errs = multierror.Append(errs, &PersistError{Key: out.Alias, Err: err})
	}
	return out, errs.ErrorOrNil()
}

func (s *Storage) create(key string, body []byte) (bool, error) {
	err := s.Create(key, body)
	switch {
	case err == nil:
		s.Log("wrote %s", key)
		return true, nil
	case errors.Is(err, driver.ErrRecordExists):
		s.Log("%s already exists, continuing", key)
		return false, nil
	}
	return false, err
}

// Record returns the canonical record of version.
func (s *Storage) Record(version string) (*tracking.VersionRecord, error) {
	data, err := s.Get(s.Definition.RecordName(version))
	if err != nil {
		return nil, err
	}
	return tracking.Decode(s.Definition, data)
}

// Version is one stored release and the branches it was seen on.
type Version struct {
	Record   *tracking.VersionRecord
	Branches []string
}

// Versions returns every stored release of the line, ordered by name.
// Files that fail to decode are logged and skipped.
func (s *Storage) Versions() ([]*Version, error) {
	keys, err := s.List()
	if err != nil {
		return nil, err
	}
	prefix := s.Definition.Name + "-"

	byVersion := map[string]*Version{}
	aliases := map[string][]string{}
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, ".yaml") {
			continue
		}
		data, err := s.Get(key)
		if err != nil {
			s.Log("skipping %s: %v", key, err)
			continue
		}
		rec, err := tracking.Decode(s.Definition, data)
		if err != nil {
			s.Log("skipping %s: %v", key, err)
			continue
		}
		switch key {
		case s.Definition.RecordName(rec.Version):
			byVersion[rec.Version] = &Version{Record: rec}
		default:
			stem := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".yaml")
			if branch := strings.TrimPrefix(stem, rec.Version+"."); branch != stem {
				aliases[rec.Version] = append(aliases[rec.Version], branch)
			}
		}
	}

	var out []*Version
	for version, v := range byVersion {
		v.Branches = aliases[version]
		sort.Strings(v.Branches)
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Record.Version < out[j].Record.Version })
	return out, nil
}
