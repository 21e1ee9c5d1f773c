package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadDefaultsAndValidation(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		dir := t.TempDir()
		f, err := Load(dir)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if f.BaseURL != DefaultBaseURL {
			t.Fatalf("BaseURL = %q, want %q", f.BaseURL, DefaultBaseURL)
		}
		if f.Timeout != DefaultTimeout {
			t.Fatalf("Timeout = %s, want %s", f.Timeout, DefaultTimeout)
		}
		if f.WorkflowLevel != 1 {
			t.Fatalf("WorkflowLevel = %d, want 1", f.WorkflowLevel)
		}
		if !f.LockEnabled() {
			t.Fatal("lock should be enabled by default")
		}
		if got, want := f.AbsTMPath(), filepath.Join(dir, ".mxkit", "tm.db"); got != want {
			t.Fatalf("AbsTMPath = %q, want %q", got, want)
		}
		p := f.PreTranslate
		if !*p.UseTranslationMemory || p.UseMachineTranslation || p.Threshold != DefaultThreshold {
			t.Fatalf("unexpected pretranslate defaults: %+v", p)
		}
		if diff := cmp.Diff([]string{"NOT_LOCKED"}, p.SegmentFilters); diff != "" {
			t.Fatalf("SegmentFilters: diff (-want +got):\n%s", diff)
		}
	})

	t.Run("reads values and job paths", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "base_url: https://tms.example.com/web\n"+
			"timeout: 15s\n"+
			"workflow_level: 2\n"+
			"lock: false\n"+
			"tm_path: /var/tm.db\n"+
			"pretranslate:\n"+
			"  use_translation_memory: false\n"+
			"  threshold: 0.9\n"+
			"jobs:\n"+
			"  - name: manual-ja\n"+
			"    project: p1\n"+
			"    uid: j1\n"+
			"  - name: manual-de\n"+
			"    project: p1\n"+
			"    uid: j2\n"+
			"    path: jobs/de.mxliff\n")

		f, err := Load(dir)
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if f.Timeout != 15*time.Second {
			t.Fatalf("Timeout = %s, want 15s", f.Timeout)
		}
		if f.WorkflowLevel != 2 || f.LockEnabled() {
			t.Fatalf("WorkflowLevel = %d, LockEnabled = %v", f.WorkflowLevel, f.LockEnabled())
		}
		if f.AbsTMPath() != "/var/tm.db" {
			t.Fatalf("AbsTMPath = %q, want /var/tm.db", f.AbsTMPath())
		}
		if *f.PreTranslate.UseTranslationMemory || f.PreTranslate.Threshold != 0.9 {
			t.Fatalf("unexpected pretranslate options: %+v", f.PreTranslate)
		}

		ja, ok := f.Job("manual-ja")
		if !ok {
			t.Fatal("job manual-ja not found")
		}
		if got, want := f.JobPath(ja), filepath.Join(dir, "manual-ja.mxliff"); got != want {
			t.Fatalf("JobPath(manual-ja) = %q, want %q", got, want)
		}
		de, _ := f.Job("manual-de")
		if got, want := f.JobPath(de), filepath.Join(dir, "jobs", "de.mxliff"); got != want {
			t.Fatalf("JobPath(manual-de) = %q, want %q", got, want)
		}
		if _, ok := f.Job("missing"); ok {
			t.Fatal("unknown job should not be found")
		}
	})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "jobs: [", "parsing"},
		{"workflow level", "workflow_level: -1\n", "workflow_level"},
		{"threshold", "pretranslate:\n  threshold: 1.5\n", "threshold"},
		{"job without name", "jobs:\n  - project: p\n    uid: u\n", "has no name"},
		{"job without uid", "jobs:\n  - name: a\n    project: p\n", "needs both project and uid"},
		{"duplicate job", "jobs:\n  - {name: a, project: p, uid: u}\n  - {name: a, project: p, uid: v}\n", "defined twice"},
	}
	for _, tc := range tests {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tc.body)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	t.Run("from environment", func(t *testing.T) {
		t.Setenv(EnvUser, "alice")
		t.Setenv(EnvPassword, "secret")
		c, err := LoadCredentials(t.TempDir())
		if err != nil {
			t.Fatalf("LoadCredentials: %v", err)
		}
		if c.User != "alice" || c.Password != "secret" {
			t.Fatalf("credentials = %+v", c)
		}
	})

	t.Run("from .env file", func(t *testing.T) {
		t.Setenv(EnvUser, "")
		t.Setenv(EnvPassword, "")
		os.Unsetenv(EnvUser)
		os.Unsetenv(EnvPassword)

		dir := t.TempDir()
		env := EnvUser + "=bob\n" + EnvPassword + "=\"p@ss word\"\n"
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		c, err := LoadCredentials(dir)
		if err != nil {
			t.Fatalf("LoadCredentials: %v", err)
		}
		if c.User != "bob" || c.Password != "p@ss word" {
			t.Fatalf("credentials = %+v", c)
		}
	})

	t.Run("environment wins over .env", func(t *testing.T) {
		t.Setenv(EnvUser, "carol")
		t.Setenv(EnvPassword, "env")
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvUser+"=dave\n"), 0600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		c, err := LoadCredentials(dir)
		if err != nil {
			t.Fatalf("LoadCredentials: %v", err)
		}
		if c.User != "carol" {
			t.Fatalf("User = %q, want carol", c.User)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(EnvUser, "")
		t.Setenv(EnvPassword, "")
		_, err := LoadCredentials(t.TempDir())
		if !errors.Is(err, ErrNoCredentials) {
			t.Fatalf("error = %v, want ErrNoCredentials", err)
		}
	})
}
