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

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/poleshift/stager/testserver"
)

func executeCommand(args ...string) (string, error) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeCatalog(t *testing.T, srv *testserver.ArtifactServer, content map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("resources:\n")
	for name, b := range content {
		a, err := srv.Publish(name, "gzip", b)
		if err != nil {
			t.Fatal(err)
		}
		u, err := srv.URLForFile(name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(&buf, "  - name: %s\n    url: %s\n    compressedDigest: %s\n    decompressedDigest: %s\n    decompress: true\n",
			name, u, a.CompressedDigest, a.DecompressedDigest)
	}
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunAndStatusCommands(t *testing.T) {
	g := NewWithT(t)

	srv, err := testserver.NewTempArtifactServer()
	g.Expect(err).ToNot(HaveOccurred())
	defer os.RemoveAll(srv.Root())
	srv.Start()
	defer srv.Stop()

	catalogPath := writeCatalog(t, srv, map[string][]byte{
		"database.kdb.gz": bytes.Repeat([]byte("ACGT"), 4096),
		"taxDB.gz":        []byte("1\t|\t1\t|\tno rank\n"),
	})
	dir := t.TempDir()
	metricsPath := filepath.Join(t.TempDir(), "stager.prom")
	common := []string{"--catalog=" + catalogPath, "--resource-dir=" + dir, "--log-level=error"}

	out, err := executeCommand(append([]string{"status", "--check=false"}, common...)...)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out).To(ContainSubstring("Absent"))

	_, err = executeCommand(append([]string{"status", "--check=true"}, common...)...)
	g.Expect(err).To(MatchError(ContainSubstring("2 of 2 resources are not ready")))

	out, err = executeCommand(append([]string{"run", "--progress=none", "--metrics-textfile=" + metricsPath}, common...)...)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out).To(ContainSubstring("written"))
	g.Expect(filepath.Join(dir, "database.kdb")).To(BeARegularFile())
	g.Expect(filepath.Join(dir, "taxDB")).To(BeARegularFile())

	prom, err := os.ReadFile(metricsPath)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(prom)).To(ContainSubstring(`stager_artifact_outcomes_total{artifact="decompressed",name="taxDB.gz",outcome="written"} 1`))

	out, err = executeCommand(append([]string{"run", "--progress=none", "--metrics-textfile="}, common...)...)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out).ToNot(ContainSubstring("written"))
	g.Expect(out).To(ContainSubstring("skipped"))
	g.Expect(srv.Requests("")).To(Equal(2))

	out, err = executeCommand(append([]string{"status", "--check=true"}, common...)...)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(out).To(ContainSubstring("Committed"))
}

func TestRunCommand_JSONProgress(t *testing.T) {
	g := NewWithT(t)

	srv, err := testserver.NewTempArtifactServer()
	g.Expect(err).ToNot(HaveOccurred())
	defer os.RemoveAll(srv.Root())
	srv.Start()
	defer srv.Stop()

	catalogPath := writeCatalog(t, srv, map[string][]byte{
		"database.idx.gz": bytes.Repeat([]byte("TTAGGG"), 4096),
	})

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"run", "--progress=json", "--metrics-textfile=",
		"--catalog=" + catalogPath, "--resource-dir=" + t.TempDir(), "--log-level=error"})
	g.Expect(rootCmd.Execute()).To(Succeed())

	events := map[string]int{}
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		var m map[string]any
		g.Expect(json.Unmarshal(scanner.Bytes(), &m)).To(Succeed(), scanner.Text())
		g.Expect(m).To(HaveKeyWithValue("name", "database.idx.gz"))
		events[m["event"].(string)]++
	}
	g.Expect(events).To(HaveKey("download-progress"))
	g.Expect(events).To(HaveKey("checksum-progress"))
	g.Expect(events).To(HaveKey("decompress-progress"))
	g.Expect(events).To(HaveKeyWithValue("db-status", 3))
	g.Expect(stderr.String()).To(ContainSubstring("database.idx.gz"))
}

func TestRunCommand_InvalidFlags(t *testing.T) {
	g := NewWithT(t)

	_, err := executeCommand("run", "--progress=bar", "--resource-dir=" + t.TempDir(), "--catalog=", "--log-level=error")
	g.Expect(err).To(MatchError(ContainSubstring("--progress must be one of")))

	_, err = executeCommand("status", "--progress=none", "--catalog="+filepath.Join(t.TempDir(), "missing.yaml"), "--log-level=error")
	g.Expect(err).To(HaveOccurred())
}
