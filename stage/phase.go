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
	"io/fs"
	"os"
)

// UncheckedSuffix is appended to the path of an artifact to obtain the
// location it is staged at before verification.
const UncheckedSuffix = "_unchecked"

// StagedPath returns the staging location for the artifact committed at
// path.
func StagedPath(path string) string {
	return path + UncheckedSuffix
}

// Phase is the on-disk state of a single artifact.
type Phase int

const (
	// PhaseAbsent means neither the staged nor the committed file exists.
	PhaseAbsent Phase = iota
	// PhaseStaged means an unverified file exists at the staged path.
	PhaseStaged
	// PhaseCommitted means the committed file exists and nothing is staged.
	PhaseCommitted
)

func (p Phase) String() string {
	switch p {
	case PhaseAbsent:
		return "Absent"
	case PhaseStaged:
		return "Staged"
	case PhaseCommitted:
		return "Committed"
	default:
		return "Unknown"
	}
}

// Probe derives the phase of the artifact committed at path from the
// filesystem. A staged file takes precedence over a committed one, since
// it may be a newer download that was interrupted before its commit.
func Probe(path string) (Phase, error) {
	staged := StagedPath(path)
	ok, err := regularFileExists(staged)
	if err != nil {
		return PhaseAbsent, &FilesystemError{Op: "stat", Path: staged, Err: err}
	}
	if ok {
		return PhaseStaged, nil
	}

	ok, err = regularFileExists(path)
	if err != nil {
		return PhaseAbsent, &FilesystemError{Op: "stat", Path: path, Err: err}
	}
	if ok {
		return PhaseCommitted, nil
	}
	return PhaseAbsent, nil
}

func regularFileExists(path string) (bool, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.Mode().IsRegular() {
		return false, errors.New("not a regular file")
	}
	return true, nil
}
