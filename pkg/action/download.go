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

	"github.com/sirupsen/logrus"

	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/depot"
	"github.com/depotdl/depotdl/pkg/filter"
)

// DefaultInstallDir receives single downloads when no directory is given.
const DefaultInstallDir = "depots"

// Download is the action for fetching one target.
type Download struct {
	cfg *Configuration

	Target depot.Target
	Dir    string
	// FileList names a file of filter entries restricting what is fetched.
	FileList     string
	ManifestOnly bool
	AllPlatforms bool
	VerifyAll    bool
}

// NewDownload creates a new Download object with the given configuration.
func NewDownload(cfg *Configuration) *Download {
	return &Download{
		cfg:    cfg,
		Target: depot.NewTarget(depot.InvalidAppID),
	}
}

// Run validates the target, then downloads it within one session. The
// returned error is a configuration or session failure; a failed transfer is
// reported in the result.
func (d *Download) Run(ctx context.Context) (*Result, error) {
	if err := d.Target.Validate(); err != nil {
		return nil, err
	}
	log := d.cfg.runLogger()

	conf := d.cfg.Content
	conf.DownloadManifestOnly = d.ManifestOnly
	conf.DownloadAllPlatforms = d.AllPlatforms
	conf.VerifyAll = d.VerifyAll
	if d.FileList != "" {
		files, err := filter.Load(d.FileList)
		if err != nil {
			log.WithError(err).Warn("Warning: unable to load filelist")
		} else {
			for _, e := range files {
				log.Debugf("filelist entry %q used as %s", e.Value, e.Kind)
			}
			conf.Files = files
		}
	}

	dir := d.Dir
	if dir == "" {
		dir = DefaultInstallDir
	}

	var res *Result
	err := d.cfg.Session.Run(ctx, func(ctx context.Context) error {
		res = d.resolveAndDownload(ctx, log, dir, conf)
		return nil
	})
	return res, err
}

// resolveAndDownload pins the manifest of a single depot target before
// downloading it. Whole-application targets go to the client as is.
func (d *Download) resolveAndDownload(ctx context.Context, log logrus.FieldLogger, dir string, conf content.Config) *Result {
	name := d.Target.String()
	t := d.Target
	if t.DepotID != depot.InvalidDepotID {
		id, err := depot.NewResolver(d.cfg.Session).Target(ctx, t)
		if err != nil {
			log.WithError(err).Warnf("unable to resolve %s", name)
			return &Result{Name: name, Target: t, Dir: dir, Err: err}
		}
		log.Debugf("%s resolved to manifest %d", name, id)
		t.ManifestID = id
	}
	return d.cfg.download(ctx, log, name, t, dir, conf)
}
