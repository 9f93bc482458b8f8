package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/installer/pkg/dependencies"
	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/tasks"
	"github.com/openfroyo/installer/pkg/workflow"
)

var linuxHost = platform.Info{OS: platform.Linux, Arch: "amd64", Distribution: "debian"}

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if filepath.Base(s.StatePath) != "history.db" {
		t.Errorf("StatePath = %s", s.StatePath)
	}
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
journal_directory: /var/lib/froyo/journals
state_path: /var/lib/froyo/history.db
download_timeout: 10m
telemetry:
  logging:
    level: debug
    format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}
	if s.JournalDirectory != "/var/lib/froyo/journals" || s.StatePath != "/var/lib/froyo/history.db" {
		t.Errorf("unexpected paths %+v", s)
	}
	if s.DownloadTimeout != 10*time.Minute {
		t.Errorf("DownloadTimeout = %v", s.DownloadTimeout)
	}
	if s.Telemetry.Logging.Level != "debug" || s.Telemetry.Logging.Format != "json" {
		t.Errorf("unexpected logging %+v", s.Telemetry.Logging)
	}
	// Untouched sections keep their defaults.
	if s.Telemetry.Tracing.Exporter != "none" || s.CacheDirectory == "" {
		t.Errorf("defaults lost: %+v", s)
	}
}

func TestLoadSettings_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadSettings(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("telemetry:\n  logging:\n    level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(bad); err == nil {
		t.Error("expected validation error for unknown log level")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(*Settings) bool
		wantErr bool
	}{
		{
			name:  "strings",
			env:   map[string]string{"FROYO_LOG_LEVEL": "warn", "FROYO_STATE_PATH": "/tmp/h.db"},
			check: func(s *Settings) bool { return s.Telemetry.Logging.Level == "warn" && s.StatePath == "/tmp/h.db" },
		},
		{
			name:  "blank values are ignored",
			env:   map[string]string{"FROYO_JOURNAL_DIR": "  "},
			check: func(s *Settings) bool { return s.JournalDirectory != "" },
		},
		{
			name: "booleans",
			env:  map[string]string{"FROYO_METRICS_ENABLED": "true", "FROYO_METRICS_TEXTFILE": "/tmp/froyo.prom"},
			check: func(s *Settings) bool {
				return s.Telemetry.Metrics.Enabled && s.Telemetry.Metrics.TextfilePath == "/tmp/froyo.prom"
			},
		},
		{
			name:  "duration",
			env:   map[string]string{"FROYO_DOWNLOAD_TIMEOUT": "90s"},
			check: func(s *Settings) bool { return s.DownloadTimeout == 90*time.Second },
		},
		{
			name: "policy path list",
			env:  map[string]string{"FROYO_POLICY_PATH": "/etc/froyo/policies" + string(os.PathListSeparator) + "/srv/policies"},
			check: func(s *Settings) bool {
				return len(s.Policies.Paths) == 2 && s.Policies.Paths[1] == "/srv/policies"
			},
		},
		{
			name:    "bad boolean",
			env:     map[string]string{"FROYO_TRACING_ENABLED": "maybe"},
			wantErr: true,
		},
		{
			name:    "bad duration",
			env:     map[string]string{"FROYO_DOWNLOAD_TIMEOUT": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			err := s.ApplyEnv(envLookup(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnv() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(s) {
				t.Errorf("unexpected settings %+v", s)
			}
		})
	}
}

func TestSettings_Validate(t *testing.T) {
	s := DefaultSettings()
	s.StatePath = ""
	s.DownloadTimeout = -time.Second
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"StatePath", "DownloadTimeout"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
}

const sampleWorkflow = `
name: sample
variables:
  Root: /opt/sample
  Port: "8080"
application:
  name: Sample
  version: 1.2.0
  install_directory: "{Root}"
policy:
  scope: machine
  journal_directory: /var/lib/sample
dependencies:
  - name: dotnet
    type: runtime
    range: ">=8.0.0 <9.0.0"
    flavor: aspnetcore
  - name: git
    type: tool
    range: ">=2.30"
    command: git
    version_pattern: 'git version (\d+\.\d+\.\d+)'
stages:
  - name: files
    defaults:
      tags: [install]
    jobs:
      - name: config
        steps:
          - name: directory
            task: create_directory
            with:
              path: "{Application.InstallDirectory}"
          - name: settings
            task: write_file
            with:
              path: "{Application.InstallDirectory}/app.conf"
              content: "port={Port}"
  - name: windows
    defaults:
      os: win
    steps:
      - name: registry
        task: script
        tags: [install, repair]
        with:
          script: echo hi
  - name: cleanup
    steps:
      - name: remove
        task: remove_recorded
        tags: [uninstall]
`

func TestParseWorkflow(t *testing.T) {
	b, err := ParseWorkflow([]byte(sampleWorkflow), tasks.DefaultRegistry(), linuxHost)
	if err != nil {
		t.Fatalf("ParseWorkflow failed: %v", err)
	}
	wf, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if wf.Name != "sample" || len(wf.Stages) != 3 {
		t.Fatalf("unexpected workflow %q with %d stages", wf.Name, len(wf.Stages))
	}
	if v, _ := wf.Variables.Get("Port"); v != "8080" {
		t.Errorf("Port = %q", v)
	}
	if _, ok := wf.Configuration("application"); !ok {
		t.Error("application block missing")
	}
	if _, ok := wf.Configuration("policy"); !ok {
		t.Error("policy block missing")
	}

	if len(wf.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(wf.Dependencies))
	}
	if rt, ok := wf.Dependencies[0].(*dependencies.RuntimeDependency); !ok || rt.Flavor() != dependencies.FlavorASPNetCore {
		t.Errorf("first dependency = %#v", wf.Dependencies[0])
	}
	if _, ok := wf.Dependencies[1].(*dependencies.ToolDependency); !ok {
		t.Errorf("second dependency = %T", wf.Dependencies[1])
	}

	files := wf.Stages[0]
	if files.Jobs[0].Name != "config" || len(files.Jobs[0].Steps) != 2 {
		t.Fatalf("unexpected files stage %+v", files.Jobs[0])
	}
	settings := files.Jobs[0].Steps[1]
	if cfg, ok := settings.Task.(*tasks.WriteFileConfig); !ok || cfg.Content != "port={Port}" {
		t.Errorf("settings task = %#v", settings.Task)
	}
	if got := settings.Configuration; got.OS != platform.Linux || len(got.Tags) != 1 || got.Tags[0] != workflow.TagInstall {
		t.Errorf("settings configuration = %+v", got)
	}

	windows := wf.Stages[1]
	if windows.Jobs[0].Name != workflow.DefaultName {
		t.Errorf("implicit job name = %q", windows.Jobs[0].Name)
	}
	registry := windows.Jobs[0].Steps[0]
	if registry.Configuration.OS != platform.Windows || len(registry.Configuration.Tags) != 2 {
		t.Errorf("registry configuration = %+v", registry.Configuration)
	}

	cleanup := wf.Stages[2].Jobs[0].Steps[0]
	if _, ok := cleanup.Task.(*tasks.RemoveRecordedConfig); !ok {
		t.Errorf("cleanup task = %T", cleanup.Task)
	}
	if cleanup.Configuration.OS != platform.Linux || cleanup.Configuration.Tags[0] != workflow.TagUninstall {
		t.Errorf("cleanup configuration = %+v", cleanup.Configuration)
	}
}

func TestParseWorkflow_Shorthand(t *testing.T) {
	doc := `
name: tiny
steps:
  - name: hello
    task: script
    with:
      script: echo hello
`
	b, err := ParseWorkflow([]byte(doc), tasks.DefaultRegistry(), linuxHost)
	if err != nil {
		t.Fatalf("ParseWorkflow failed: %v", err)
	}
	wf, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if wf.Stages[0].Name != workflow.DefaultName || wf.Stages[0].Jobs[0].Name != workflow.DefaultName {
		t.Errorf("expected default stage and job, got %s/%s", wf.Stages[0].Name, wf.Stages[0].Jobs[0].Name)
	}
	step := wf.Stages[0].Jobs[0].Steps[0]
	if want := workflow.DefaultStepConfiguration(linuxHost); step.Configuration.OS != want.OS || len(step.Configuration.Tags) != len(want.Tags) {
		t.Errorf("configuration = %+v, want %+v", step.Configuration, want)
	}
}

func TestParseWorkflow_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not yaml", "name: [", "failed to parse"},
		{"missing name", "steps: []", "Name"},
		{"unknown task", "name: w\nsteps:\n  - name: s\n    task: teleport\n", "teleport"},
		{"bad os", "name: w\nsteps:\n  - name: s\n    task: script\n    os: plan9\n    with: {script: x}\n", "plan9"},
		{"bad tag", "name: w\nsteps:\n  - name: s\n    task: script\n    tags: [deploy]\n    with: {script: x}\n", "deploy"},
		{"steps and stages", "name: w\nsteps:\n  - {name: a, task: script}\nstages:\n  - name: s\n", "not both"},
		{"tool without command", "name: w\ndependencies:\n  - {name: git, type: tool, range: '>=2'}\n", "Command"},
		{"bad range", "name: w\ndependencies:\n  - {name: git, type: tool, range: 'latest!', command: git}\n", "dependency 1"},
		{"pattern without group", "name: w\ndependencies:\n  - {name: git, type: tool, range: '>=2', command: git, version_pattern: 'v\\d+'}\n", "capture group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkflow([]byte(tt.doc), tasks.DefaultRegistry(), linuxHost)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errdefs.IsConfiguration(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadWorkflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	if err := os.WriteFile(path, []byte(sampleWorkflow), 0o644); err != nil {
		t.Fatal(err)
	}

	wf, err := LoadWorkflow(path, tasks.DefaultRegistry(), linuxHost)
	if err != nil {
		t.Fatalf("LoadWorkflow failed: %v", err)
	}
	if wf.StepCount() != 4 {
		t.Errorf("StepCount = %d, want 4", wf.StepCount())
	}

	if _, err := LoadWorkflow(filepath.Join(t.TempDir(), "none.yaml"), tasks.DefaultRegistry(), linuxHost); !errdefs.IsConfiguration(err) {
		t.Errorf("expected configuration error for missing file, got %v", err)
	}
}
