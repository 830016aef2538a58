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

package testserver

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// NewTempArtifactServer returns an ArtifactServer with a newly created temp
// dir as the artifact docroot.
func NewTempArtifactServer() (*ArtifactServer, error) {
	tmpDir, err := os.MkdirTemp("", "artifact-test-")
	if err != nil {
		return nil, err
	}
	server := NewHTTPServer(tmpDir)
	artifact := &ArtifactServer{server}
	return artifact, nil
}

// ArtifactServer is an HTTP artifact server for testing purposes. It
// offers utilities to publish compressed database files.
type ArtifactServer struct {
	*HTTPServer
}

// Artifact describes a file published by an ArtifactServer.
type Artifact struct {
	// Name is the file name relative to the docroot.
	Name string
	// Compressed is the content served over HTTP.
	Compressed []byte
	// CompressedDigest is the SHA-256 hex digest of Compressed.
	CompressedDigest string
	// DecompressedDigest is the SHA-256 hex digest of the original content.
	DecompressedDigest string
}

// Publish compresses content with the given format ("gzip", "zstd",
// "lz4" or "none") and writes it to the docroot under name.
func (s *ArtifactServer) Publish(name, format string, content []byte) (*Artifact, error) {
	compressed, err := Compress(format, content)
	if err != nil {
		return nil, err
	}
	if err := s.PublishRaw(name, compressed); err != nil {
		return nil, err
	}
	return &Artifact{
		Name:               name,
		Compressed:         compressed,
		CompressedDigest:   SHA256(compressed),
		DecompressedDigest: SHA256(content),
	}, nil
}

// PublishRaw writes content to the docroot under name, as is.
func (s *ArtifactServer) PublishRaw(name string, content []byte) error {
	return os.WriteFile(filepath.Join(s.Root(), name), content, 0o644)
}

// URLForFile returns the URL the given file can be reached at or
// an error if the server has not been started.
func (s *ArtifactServer) URLForFile(file string) (string, error) {
	if s.URL() == "" {
		return "", errors.New("server must be started to be able to determine the URL of the given file")
	}
	return fmt.Sprintf("%s/%s", s.URL(), file), nil
}

// Compress returns content compressed with the given format.
func Compress(format string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch format {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		w = zw
	case "lz4":
		w = lz4.NewWriter(&buf)
	case "none":
		return append([]byte(nil), content...), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if _, err := w.Write(content); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SHA256 returns the lowercase hex SHA-256 digest of b.
func SHA256(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
