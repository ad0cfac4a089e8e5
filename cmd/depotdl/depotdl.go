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

package main // import "github.com/depotdl/depotdl/cmd/depotdl"

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/depotdl/depotdl/pkg/action"
	"github.com/depotdl/depotdl/pkg/cli"
)

var settings = cli.New()

var log = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l
}

func debug(format string, v ...interface{}) {
	if settings.Debug {
		log.Debugf(format, v...)
	}
}

func warning(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

// stopOnSignal closes the session of cfg, if one is open, when the process
// is interrupted. The returned function removes the handler.
func stopOnSignal(cfg *action.Configuration) func() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-c:
			warning("received %s, shutting down", sig)
			if cfg.Session != nil {
				if err := cfg.Session.Stop(); err != nil {
					warning("unable to close session: %v", err)
				}
			}
			os.Exit(130)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}

func main() {
	actionConfig := new(action.Configuration)
	cmd, err := newRootCmd(actionConfig, log, os.Stdin, os.Stdout, os.Args[1:])
	if err != nil {
		warning("%+v", err)
		os.Exit(1)
	}

	stop := stopOnSignal(actionConfig)
	err = cmd.Execute()
	stop()
	if err != nil {
		debug("%+v", err)
		os.Exit(1)
	}
}
