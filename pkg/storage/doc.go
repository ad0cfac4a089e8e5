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
Package storage persists version records.

Every record is written once under its canonical name, and once more per
branch it was seen on under an alias name. Nothing is ever overwritten: the
first writer of a name owns it. The backend is a driver from the driver
subpackage.
*/
package storage // import "github.com/depotdl/depotdl/pkg/storage"
