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

package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/depotdl/depotdl/internal/version"
	"github.com/depotdl/depotdl/pkg/action"
	"github.com/depotdl/depotdl/pkg/content"
)

var globalUsage = `Download depots of an application from a content service.

Common actions for depotdl:

- depotdl download:  download one application, depot or manifest
- depotdl legacy:    download the fixed list of historical releases
- depotdl track:     record and download the current release of each branch
- depotdl versions:  list recorded releases

Environment variables:

| Name                                  | Description                                                   |
|---------------------------------------|---------------------------------------------------------------|
| $DEPOTDL_SERVICE_URL                  | base URL of the content service                               |
| $DEPOTDL_CELL_ID                      | region used to pick content servers                           |
| $DEPOTDL_MAX_SERVERS                  | maximum number of content servers to use (default 20)         |
| $DEPOTDL_MAX_DOWNLOADS                | maximum number of concurrent chunk downloads (default 4)      |
| $DEPOTDL_RETRIES                      | number of times a failed request is retried (default 4)       |
| $DEPOTDL_TIMEOUT                      | time to wait for a single request (default 2m0s)              |
| $DEPOTDL_BRANCH_PASSWORD              | password of a protected branch                                |
| $DEPOTDL_DRIVER                       | storage driver for version records: disk, memory or sql       |
| $DEPOTDL_DRIVER_SQL_CONNECTION_STRING | connection string used by the sql driver                      |
| $DEPOTDL_METADATA_DIR                 | directory version records are written to by the disk driver   |
| $DEPOTDL_DEFINITION                   | path to a tracked application line definition                 |
| $DEPOTDL_DEBUG                        | enable verbose output                                         |
| $DEPOTDL_CONFIG_HOME                  | alternative location for the configuration directory          |
`

// configInit completes the action configuration before a command runs.
// Commands that talk to the content service ask for a session.
type configInit func(needSession bool) error

// newContentClient builds the client every session drives.
var newContentClient = func(logger logrus.FieldLogger) (content.Client, error) {
	if settings.ServiceURL == "" {
		return nil, errors.New("no content service configured: set --service-url or $DEPOTDL_SERVICE_URL")
	}
	return content.NewHTTPClient(append(settings.ClientOptions(), content.WithLogger(logger))...)
}

func newRootCmd(actionConfig *action.Configuration, logger *logrus.Logger, in io.Reader, out io.Writer, args []string) (*cobra.Command, error) {
	creds := content.Credentials{}

	cmd := &cobra.Command{
		Use:          "depotdl",
		Short:        "Download application depots from a content service.",
		Long:         globalUsage,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if settings.Debug {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	flags := cmd.PersistentFlags()
	settings.AddFlags(flags)
	flags.StringVar(&creds.Username, "username", "", "account to log in with; anonymous when empty")
	flags.StringVar(&creds.Password, "password", "", "account password; prompted for when a username is given without one")

	setup := func(needSession bool) error {
		return initActionConfig(actionConfig, logger, creds, needSession, in, out)
	}

	cmd.AddCommand(
		newDownloadCmd(actionConfig, setup, out),
		newLegacyCmd(actionConfig, setup, out),
		newTrackCmd(actionConfig, setup, out),
		newVersionsCmd(actionConfig, setup, out),
		newEnvCmd(out),
		newVersionCmd(out),
	)
	cmd.SetGlobalNormalizationFunc(aliasFlags)

	// We can safely ignore any errors that flags.Parse encounters since
	// those errors will be caught later during the call to cmd.Execution.
	// This call is required to gather configuration information prior to
	// execution.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Parse(args)

	return cmd, nil
}

// initActionConfig loads the definition, sets up record storage and, when
// asked for, a session. Records already present are reused by the memory
// driver.
func initActionConfig(cfg *action.Configuration, logger *logrus.Logger, creds content.Credentials, needSession bool, in io.Reader, out io.Writer) error {
	if cfg.Definition == nil {
		def, err := settings.LoadDefinition()
		if err != nil {
			return errors.Wrap(err, "unable to load tracked line definition")
		}
		cfg.Definition = def
	}

	var client content.Client
	if needSession {
		c, err := newContentClient(logger)
		if err != nil {
			return err
		}
		client = c
	}
	if err := cfg.Init(client, creds, settings.Driver, settings.MetadataDir, logger); err != nil {
		return err
	}
	cfg.Content = settings.ContentConfig()
	if cfg.Session != nil {
		cfg.Session.Prompt = passwordPrompter(in, out)
	}

	debug("depotdl %s using %s records for %s", version.GetVersion(), cfg.Records.Name(), cfg.Definition.Name)
	return nil
}
