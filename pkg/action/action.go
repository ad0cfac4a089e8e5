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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/depotdl/depotdl/pkg/content"
	"github.com/depotdl/depotdl/pkg/depot"
	"github.com/depotdl/depotdl/pkg/storage"
	"github.com/depotdl/depotdl/pkg/storage/driver"
	"github.com/depotdl/depotdl/pkg/tracking"
)

// Configuration injects the dependencies that all actions share.
type Configuration struct {
	// Session brackets every call to the content service.
	Session *depot.Session

	// Records stores version records.
	Records *storage.Storage

	// Definition is the tracked application line.
	Definition *tracking.Definition

	// Content is the run configuration every download starts from.
	Content content.Config

	Log logrus.FieldLogger
}

// Init sets up the storage driver named by recordDriver and, when client is
// not nil, a session driving it.
func (cfg *Configuration) Init(client content.Client, creds content.Credentials, recordDriver, metadataDir string, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg.Log = log
	if cfg.Definition == nil {
		cfg.Definition = tracking.Default()
	}
	if cfg.Content.MaxDownloads == 0 && cfg.Content.MaxServers == 0 {
		cfg.Content = content.NewConfig()
	}

	if client != nil {
		cfg.Session = depot.NewSession(client, creds)
		cfg.Session.Log = log
	}

	debug := func(format string, v ...interface{}) { log.Debugf(format, v...) }

	var store *storage.Storage
	switch recordDriver {
	case "disk", "":
		if metadataDir == "" {
			metadataDir = "."
		}
		d, err := driver.NewDisk(metadataDir)
		if err != nil {
			return err
		}
		d.Log = debug
		store = storage.Init(d, cfg.Definition)
	case "memory":
		var d *driver.Memory
		if cfg.Records != nil {
			if mem, ok := cfg.Records.Driver.(*driver.Memory); ok {
				// re-use records already created in the existing memory driver
				d = mem
			}
		}
		if d == nil {
			d = driver.NewMemory()
		}
		store = storage.Init(d, cfg.Definition)
	case "sql":
		d, err := driver.NewSQL(os.Getenv("DEPOTDL_DRIVER_SQL_CONNECTION_STRING"), debug)
		if err != nil {
			return errors.Wrap(err, "unable to instantiate SQL driver")
		}
		store = storage.Init(d, cfg.Definition)
	default:
		return errors.Errorf("unknown driver %q", recordDriver)
	}
	store.Log = debug
	cfg.Records = store
	return nil
}

// runLogger tags every log line of one action run.
func (cfg *Configuration) runLogger() logrus.FieldLogger {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("run", uuid.NewString())
}

// Result is the outcome of one download.
type Result struct {
	// Name identifies the item within its batch: a label, or a platform.
	Name   string
	Target depot.Target
	Dir    string
	// Err is nil on success, else a *depot.ResolutionError or a
	// *depot.TransferError.
	Err error
}

// OK reports whether the download succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// download issues one blocking download of t into dir using conf.
func (cfg *Configuration) download(ctx context.Context, log logrus.FieldLogger, name string, t depot.Target, dir string, conf content.Config) *Result {
	res := &Result{Name: name, Target: t, Dir: dir}
	log = log.WithFields(logrus.Fields{"app": t.AppID, "depot": t.DepotID, "branch": t.BranchOrDefault()})
	log.Infof("Working on %s", name)

	if err := cfg.Session.Client().Download(ctx, t.Request(conf, dir)); err != nil {
		res.Err = &depot.TransferError{Target: t, Dir: dir, Err: err}
		log.WithError(err).Warnf("download of %s failed", name)
	}
	return res
}
