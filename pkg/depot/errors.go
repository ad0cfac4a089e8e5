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

/*
Package depot resolves what to download from the content service.

A Target names one requested download. A Session brackets every call made to
the content service, and a Resolver turns a depot and branch into the
manifest that is current there, unless the caller forced one.
*/
package depot

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError is a request that cannot be run at all. It is reported
// before any session work starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid request: " + e.Reason
}

// SessionError is a failure to open the session with the content service.
type SessionError struct {
	Username string
	Err      error
}

func (e *SessionError) Error() string {
	who := "anonymous"
	if e.Username != "" {
		who = fmt.Sprintf("%q", e.Username)
	}
	return fmt.Sprintf("unable to start session as %s: %v", who, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// ResolutionError is a branch, application or depot that could not be
// resolved to a build or manifest.
type ResolutionError struct {
	AppID   uint32
	DepotID uint32
	Branch  string
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.DepotID == InvalidDepotID {
		return fmt.Sprintf("unable to resolve app %d on branch %q: %v", e.AppID, e.Branch, e.Err)
	}
	return fmt.Sprintf("unable to resolve depot %d of app %d on branch %q: %v", e.DepotID, e.AppID, e.Branch, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TransferError is a download reported as failed by the content service.
type TransferError struct {
	Target Target
	Dir    string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("download of %s into %s failed: %v", e.Target, e.Dir, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ErrSessionInactive is returned for service calls made outside a session.
var ErrSessionInactive = errors.New("session is not active")

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

// IsSessionError reports whether err is a SessionError.
func IsSessionError(err error) bool {
	var e *SessionError
	return errors.As(err, &e)
}

// IsResolutionError reports whether err is a ResolutionError.
func IsResolutionError(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e)
}

// IsTransferError reports whether err is a TransferError.
func IsTransferError(err error) bool {
	var e *TransferError
	return errors.As(err, &e)
}
