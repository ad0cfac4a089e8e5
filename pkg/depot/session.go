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
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/depotdl/depotdl/pkg/content"
)

// Prompter asks for the password of username when none was supplied.
type Prompter func(username string) (string, error)

// Session brackets the calls made to the content service. Start and Stop are
// idempotent, and Run guarantees Stop once Start has succeeded.
type Session struct {
	client content.Client
	creds  content.Credentials

	// Prompt is consulted when a username is set without a password. Without
	// a Prompt such a session fails to start.
	Prompt Prompter
	Log    logrus.FieldLogger

	mu     sync.Mutex
	active bool
}

// NewSession returns an inactive session for client.
func NewSession(client content.Client, creds content.Credentials) *Session {
	return &Session{
		client: client,
		creds:  creds,
		Log:    logrus.StandardLogger(),
	}
}

// Client returns the content client this session drives.
func (s *Session) Client() content.Client {
	return s.client
}

// Active reports whether the session is open.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start opens the session. Starting an active session does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}

	creds := s.creds
	if creds.Anonymous() {
		s.Log.Info("No username given. Using anonymous account")
	} else if creds.Password == "" && s.Prompt != nil {
		pw, err := s.Prompt(creds.Username)
		if err != nil {
			return &SessionError{Username: creds.Username, Err: err}
		}
		creds.Password = pw
		s.creds.Password = pw
	} else if creds.Password == "" {
		return &SessionError{Username: creds.Username, Err: errors.Errorf("no password given for %s", creds.Username)}
	}

	if err := s.client.Connect(ctx, creds); err != nil {
		return &SessionError{Username: creds.Username, Err: err}
	}
	s.active = true
	s.Log.WithField("user", creds.Username).Debug("session started")
	return nil
}

// Stop closes the session. Stopping an inactive session does nothing.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	s.active = false
	err := s.client.Disconnect()
	if err != nil {
		s.Log.WithError(err).Warn("session did not close cleanly")
	} else {
		s.Log.Debug("session stopped")
	}
	return err
}

// Run starts the session, calls fn, and stops the session on every exit
// path, panics included. A failed Stop does not mask the error of fn.
func (s *Session) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if stopErr := s.Stop(); err == nil {
			err = stopErr
		}
	}()
	return fn(ctx)
}
