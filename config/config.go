// Package config loads the .mxkit.yaml project file and TMS credentials.
//
// The project file configures the TMS connection, pre-translation options,
// the translation memory location and a list of named jobs:
//
//	base_url: https://cloud.memsource.com/web
//	timeout: 60s
//	workflow_level: 1
//	tm_path: .mxkit/tm.db
//	pretranslate:
//	  use_translation_memory: true
//	  threshold: 0.75
//	jobs:
//	  - name: manual-ja
//	    project: 9aBcD...
//	    uid: Xy12...
//	    path: jobs/manual_ja.mxliff
//
// Credentials never live in the project file. They are read from
// MEMSOURCE_USER and MEMSOURCE_PASSWORD, optionally populated from a .env
// file in the project root.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".mxkit.yaml"

// Defaults applied to missing fields.
const (
	DefaultBaseURL       = "https://cloud.memsource.com/web"
	DefaultTimeout       = 60 * time.Second
	DefaultWorkflowLevel = 1
	DefaultTMPath        = ".mxkit/tm.db"
	DefaultThreshold     = 0.75
)

// Environment variables holding TMS credentials.
const (
	EnvUser     = "MEMSOURCE_USER"
	EnvPassword = "MEMSOURCE_PASSWORD"
)

// ErrNoCredentials is returned by LoadCredentials when the user name or
// password is missing.
var ErrNoCredentials = errors.New("missing " + EnvUser + " or " + EnvPassword)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .mxkit.yaml structure.
type File struct {
	// BaseURL is the TMS web root; API paths are appended to it.
	BaseURL string `yaml:"base_url,omitempty"`
	// InsecureSkipVerify disables TLS certificate checks for this client only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// WorkflowLevel selects the workflow step when listing jobs.
	WorkflowLevel int `yaml:"workflow_level,omitempty"`
	// Lock enables mxkit.lock tracking (default true).
	Lock *bool `yaml:"lock,omitempty"`
	// TMPath is the translation memory database, relative to the project root.
	TMPath string `yaml:"tm_path,omitempty"`
	// PreTranslate holds the options sent with pre-translate requests.
	PreTranslate PreTranslate `yaml:"pretranslate,omitempty"`
	// Jobs are named TMS jobs with their local file paths.
	Jobs []Job `yaml:"jobs,omitempty"`

	root string
}

// PreTranslate mirrors the TMS pre-translate request options.
type PreTranslate struct {
	UseTranslationMemory          *bool    `yaml:"use_translation_memory,omitempty"`
	UseMachineTranslation         bool     `yaml:"use_machine_translation,omitempty"`
	Threshold                     float64  `yaml:"threshold,omitempty"`
	PreTranslateNonTranslatables  *bool    `yaml:"non_translatables,omitempty"`
	ConfirmNonTranslatableMatches *bool    `yaml:"confirm_non_translatable_matches,omitempty"`
	SegmentFilters                []string `yaml:"segment_filters,omitempty"`
}

// Job names a TMS job and where its bilingual file lives locally.
type Job struct {
	Name    string `yaml:"name"`
	Project string `yaml:"project"`
	UID     string `yaml:"uid"`
	// Path is relative to the project root (default "<name>.mxliff").
	Path string `yaml:"path,omitempty"`
}

// Credentials are the TMS login.
type Credentials struct {
	User     string
	Password string
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load loads and validates .mxkit.yaml from rootDir. A missing file yields
// a configuration with all defaults.
func Load(rootDir string) (*File, error) {
	path := filepath.Join(rootDir, FileName)
	var f File

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	f.root = rootDir
	f.applyDefaults()
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &f, nil
}

func boolPtr(v bool) *bool { return &v }

func (f *File) applyDefaults() {
	if f.BaseURL == "" {
		f.BaseURL = DefaultBaseURL
	}
	if f.Timeout == 0 {
		f.Timeout = DefaultTimeout
	}
	if f.WorkflowLevel == 0 {
		f.WorkflowLevel = DefaultWorkflowLevel
	}
	if f.Lock == nil {
		f.Lock = boolPtr(true)
	}
	if f.TMPath == "" {
		f.TMPath = DefaultTMPath
	}

	p := &f.PreTranslate
	if p.UseTranslationMemory == nil {
		p.UseTranslationMemory = boolPtr(true)
	}
	if p.Threshold == 0 {
		p.Threshold = DefaultThreshold
	}
	if p.PreTranslateNonTranslatables == nil {
		p.PreTranslateNonTranslatables = boolPtr(true)
	}
	if p.ConfirmNonTranslatableMatches == nil {
		p.ConfirmNonTranslatableMatches = boolPtr(true)
	}
	if len(p.SegmentFilters) == 0 {
		p.SegmentFilters = []string{"NOT_LOCKED"}
	}

	for i := range f.Jobs {
		if f.Jobs[i].Path == "" {
			f.Jobs[i].Path = f.Jobs[i].Name + ".mxliff"
		}
	}
}

func (f *File) validate() error {
	if f.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", f.Timeout)
	}
	if f.WorkflowLevel < 1 {
		return fmt.Errorf("workflow_level must be at least 1, got %d", f.WorkflowLevel)
	}
	if t := f.PreTranslate.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("pretranslate.threshold must be between 0 and 1, got %g", t)
	}

	seen := make(map[string]bool)
	for i, j := range f.Jobs {
		if j.Name == "" {
			return fmt.Errorf("job #%d has no name", i+1)
		}
		if seen[j.Name] {
			return fmt.Errorf("job %q is defined twice", j.Name)
		}
		seen[j.Name] = true
		if j.Project == "" || j.UID == "" {
			return fmt.Errorf("job %q needs both project and uid", j.Name)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Root returns the project root the file was loaded from.
func (f *File) Root() string { return f.root }

// LockEnabled reports whether mxkit.lock tracking is on.
func (f *File) LockEnabled() bool { return f.Lock == nil || *f.Lock }

// AbsTMPath returns the translation memory path resolved against the root.
func (f *File) AbsTMPath() string {
	if filepath.IsAbs(f.TMPath) {
		return f.TMPath
	}
	return filepath.Join(f.root, f.TMPath)
}

// Job returns the job with the given name.
func (f *File) Job(name string) (Job, bool) {
	for _, j := range f.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}

// JobPath returns the local path of a job's bilingual file.
func (f *File) JobPath(j Job) string {
	if filepath.IsAbs(j.Path) {
		return j.Path
	}
	return filepath.Join(f.root, j.Path)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// LoadCredentials reads the TMS login from the environment, first loading
// rootDir/.env if it exists. Variables already set in the environment win
// over .env values.
func LoadCredentials(rootDir string) (Credentials, error) {
	envPath := filepath.Join(rootDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return Credentials{}, fmt.Errorf("loading %s: %w", envPath, err)
		}
	}

	c := Credentials{
		User:     os.Getenv(EnvUser),
		Password: os.Getenv(EnvPassword),
	}
	if c.User == "" || c.Password == "" {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}
