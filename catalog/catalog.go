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

// Package catalog describes the remote resources the stager keeps in
// sync with the local resource directory.
package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	godigest "github.com/opencontainers/go-digest"
	"sigs.k8s.io/yaml"

	"github.com/poleshift/stager/digest"
	"github.com/poleshift/stager/stage"
)

// Compression formats supported for downloaded artifacts.
const (
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

var compressionExtensions = map[string]string{
	CompressionGzip: ".gz",
	CompressionZstd: ".zst",
	CompressionLZ4:  ".lz4",
}

// Resource is a single remote file and, optionally, its decompressed
// form.
type Resource struct {
	// Name is the unique key of the resource and the file name of the
	// compressed artifact inside the resource directory.
	Name string `json:"name"`

	// URL is the location the compressed artifact is downloaded from.
	URL string `json:"url"`

	// CompressedDigest is the expected digest of the downloaded file.
	// Empty disables verification.
	CompressedDigest string `json:"compressedDigest,omitempty"`

	// DecompressedDigest is the expected digest of the decompressed file.
	// Empty disables verification.
	DecompressedDigest string `json:"decompressedDigest,omitempty"`

	// Decompress tells whether the downloaded file must be decompressed.
	Decompress bool `json:"decompress"`

	// Compression is the format of the downloaded file, gzip by default.
	Compression string `json:"compression,omitempty"`

	// FinalName is the file name of the decompressed artifact inside the
	// resource directory. Defaults to Name without its compression
	// extension.
	FinalName string `json:"finalName,omitempty"`

	// CompressedPath is the committed location of the downloaded file.
	CompressedPath string `json:"-"`

	// FinalPath is the committed location of the decompressed file, equal
	// to CompressedPath when the resource is not decompressed.
	FinalPath string `json:"-"`

	compressedDigest   godigest.Digest
	decompressedDigest godigest.Digest
}

// CompressedArtifact returns the stage.Artifact of the downloaded file.
func (r Resource) CompressedArtifact() stage.Artifact {
	return stage.Artifact{Name: r.Name, Path: r.CompressedPath, Expected: r.compressedDigest}
}

// DecompressedArtifact returns the stage.Artifact of the decompressed
// file.
func (r Resource) DecompressedArtifact() stage.Artifact {
	return stage.Artifact{Name: r.Name, Path: r.FinalPath, Expected: r.decompressedDigest}
}

// Catalog is the set of resources staged by a single run.
type Catalog struct {
	Resources []Resource `json:"resources"`
}

// Load reads a YAML or JSON catalog file. The returned catalog still
// needs to be resolved against a resource directory.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &stage.ConfigurationError{Source: path, Err: err}
	}

	var c Catalog
	if err := yaml.UnmarshalStrict(b, &c); err != nil {
		return nil, &stage.ConfigurationError{Source: path, Err: fmt.Errorf("failed to parse: %w", err)}
	}
	if len(c.Resources) == 0 {
		return nil, &stage.ConfigurationError{Source: path, Err: errors.New("no resources defined")}
	}
	return &c, nil
}

// Resolve validates the catalog and derives the artifact paths of every
// resource inside dir. Names must be unique and no two artifacts, staged
// copies included, may share a path.
func (c *Catalog) Resolve(dir string) error {
	if dir == "" {
		return &stage.ConfigurationError{Err: errors.New("resource directory is not set")}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return &stage.PathResolutionError{Path: dir, Err: err}
	}

	owners := map[string]string{}
	claim := func(name, path string) error {
		for _, p := range []string{path, stage.StagedPath(path)} {
			if owner, ok := owners[p]; ok {
				return &stage.ConfigurationError{
					Err: fmt.Errorf("resources '%s' and '%s' both use path '%s'", owner, name, p),
				}
			}
			owners[p] = name
		}
		return nil
	}

	names := map[string]bool{}
	for i := range c.Resources {
		r := &c.Resources[i]
		if err := r.resolve(dir); err != nil {
			return err
		}
		if names[r.Name] {
			return &stage.ConfigurationError{Err: fmt.Errorf("duplicate resource name '%s'", r.Name)}
		}
		names[r.Name] = true

		if err := claim(r.Name, r.CompressedPath); err != nil {
			return err
		}
		if r.Decompress {
			if err := claim(r.Name, r.FinalPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resource) resolve(dir string) error {
	if r.Name == "" {
		return &stage.ConfigurationError{Err: errors.New("resource without a name")}
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &stage.ConfigurationError{Err: fmt.Errorf("resource '%s' has an invalid URL '%s'", r.Name, r.URL)}
	}

	if r.compressedDigest, err = digest.Parse(r.CompressedDigest); err != nil {
		return &stage.ConfigurationError{Err: fmt.Errorf("resource '%s': compressed %w", r.Name, err)}
	}
	if r.decompressedDigest, err = digest.Parse(r.DecompressedDigest); err != nil {
		return &stage.ConfigurationError{Err: fmt.Errorf("resource '%s': decompressed %w", r.Name, err)}
	}

	if r.Compression == "" {
		r.Compression = CompressionGzip
	}
	ext, ok := compressionExtensions[r.Compression]
	if !ok {
		return &stage.ConfigurationError{Err: fmt.Errorf("resource '%s' has unsupported compression '%s'", r.Name, r.Compression)}
	}

	if r.CompressedPath, err = joinFile(dir, r.Name); err != nil {
		return &stage.PathResolutionError{Name: r.Name, Path: r.Name, Err: err}
	}
	if !r.Decompress {
		r.FinalPath = r.CompressedPath
		return nil
	}

	if r.FinalName == "" {
		r.FinalName = strings.TrimSuffix(r.Name, ext)
	}
	if r.FinalPath, err = joinFile(dir, r.FinalName); err != nil {
		return &stage.PathResolutionError{Name: r.Name, Path: r.FinalName, Err: err}
	}
	if r.FinalPath == r.CompressedPath {
		return &stage.ConfigurationError{
			Err: fmt.Errorf("resource '%s' needs a finalName distinct from its name", r.Name),
		}
	}
	return nil
}

// joinFile joins name to dir, refusing names that would resolve outside
// of dir or to dir itself.
func joinFile(dir, name string) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("'%s' must be a plain file name", name)
	}
	p, err := securejoin.SecureJoin(dir, name)
	if err != nil {
		return "", err
	}
	if filepath.Dir(p) != dir {
		return "", fmt.Errorf("'%s' must be a plain file name", name)
	}
	return p, nil
}

// Names returns the resource names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Resources))
	for _, r := range c.Resources {
		names = append(names, r.Name)
	}
	return names
}
