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

package pipeline

import (
	"github.com/poleshift/stager/catalog"
	"github.com/poleshift/stager/stage"
)

// ArtifactStatus is the phase of an artifact as found on disk.
type ArtifactStatus struct {
	Path  string
	Phase stage.Phase
}

// ResourceStatus is the on-disk state of a resource.
type ResourceStatus struct {
	Name       string
	Compressed ArtifactStatus
	// Decompressed is only set for resources that are decompressed.
	Decompressed *ArtifactStatus
}

// Ready tells whether the final artifact of the resource is committed.
func (s ResourceStatus) Ready() bool {
	if s.Decompressed != nil {
		return s.Decompressed.Phase == stage.PhaseCommitted
	}
	return s.Compressed.Phase == stage.PhaseCommitted
}

// Status probes the phase of every artifact of the resolved catalog c,
// without network access and without hashing.
func (o *Orchestrator) Status(c *catalog.Catalog) ([]ResourceStatus, error) {
	statuses := make([]ResourceStatus, 0, len(c.Resources))
	for _, r := range c.Resources {
		phase, err := stage.Probe(r.CompressedPath)
		if err != nil {
			return nil, err
		}
		s := ResourceStatus{
			Name:       r.Name,
			Compressed: ArtifactStatus{Path: r.CompressedPath, Phase: phase},
		}
		if r.Decompress {
			phase, err := stage.Probe(r.FinalPath)
			if err != nil {
				return nil, err
			}
			s.Decompressed = &ArtifactStatus{Path: r.FinalPath, Phase: phase}
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}
