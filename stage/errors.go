/*
Copyright 2026 The Poleshift authors

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

package stage

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by a NetworkError for a 404 response.
var ErrNotFound = errors.New("file not found")

// PathResolutionError is returned when the location of an artifact cannot
// be derived, e.g. because the resource name escapes the resource
// directory.
type PathResolutionError struct {
	Name string
	Path string
	Err  error
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve path '%s' for resource '%s': %v", e.Path, e.Name, e.Err)
}

func (e *PathResolutionError) Unwrap() error {
	return e.Err
}

// NetworkError is returned when a transfer fails or the server responds
// with a non-success status. StatusCode is zero for transport failures.
type NetworkError struct {
	Name       string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to download '%s' from %s, status: %d %s",
			e.Name, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("failed to download '%s' from %s: %v", e.Name, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return e.Err
}

// FilesystemError is returned when creating, writing, renaming or
// removing an artifact file fails.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("failed to %s '%s': %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// DigestMismatchError is returned when the content of a staged artifact
// does not hash to the expected digest. The staged file has already been
// removed when this error is returned.
type DigestMismatchError struct {
	Name     string
	Path     string
	Expected string
	Actual   string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch for '%s' (%s): computed '%s' doesn't match expected '%s'",
		e.Name, e.Path, e.Actual, e.Expected)
}

// MissingPrecursorError is returned when decompression is attempted
// before the compressed artifact has been committed.
type MissingPrecursorError struct {
	Name string
	Path string
}

func (e *MissingPrecursorError) Error() string {
	return fmt.Sprintf("cannot decompress '%s': compressed artifact '%s' is not committed", e.Name, e.Path)
}

// ConfigurationError is returned when the resource catalog or the run
// options are missing, unparseable or inconsistent. Source names the file
// or flag set at fault, if any.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration in '%s': %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
