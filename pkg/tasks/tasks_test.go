package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

type fakeRunner struct {
	calls  []local.Command
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd local.Command) (*local.Result, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &local.Result{Stdout: f.stdout}, nil
}

func newContext(t *testing.T, runner local.Runner) *Context {
	t.Helper()
	j, err := journal.CreateOrRead(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("CreateOrRead failed: %v", err)
	}
	return &Context{
		Variables: variables.NewMap(nil),
		Journal:   j,
		Platform:  platform.Info{OS: platform.OS(runtime.GOOS), Arch: runtime.GOARCH},
		Runner:    runner,
		Logger:    zerolog.Nop(),
	}
}

func TestRegistry_TaskFor(t *testing.T) {
	r := DefaultRegistry()

	want := []string{KindCreateDirectory, KindRegistryValue, KindRemoveRecorded, KindScript, KindWriteFile}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}

	task, err := r.TaskFor(&ScriptConfig{Script: "true"})
	if err != nil {
		t.Fatalf("TaskFor failed: %v", err)
	}
	if _, ok := task.(*scriptTask); !ok {
		t.Errorf("expected *scriptTask, got %T", task)
	}

	_, err = r.TaskFor(&unknownConfig{})
	if !errors.Is(err, errdefs.ErrNoTaskForKind) {
		t.Errorf("expected ErrNoTaskForKind, got %v", err)
	}
}

// unknownConfig claims the script kind but is a different type.
type unknownConfig struct{ kind string }

func (u *unknownConfig) Kind() string {
	if u.kind == "" {
		return "unknown"
	}
	return u.kind
}
func (u *unknownConfig) Validate() error { return nil }
func (u *unknownConfig) Substitute(*variables.Resolver) error { return nil }
func (u *unknownConfig) Clone() workflow.TaskConfiguration { c := *u; return &c }

func TestRegistry_RejectsMismatchedConfiguration(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.TaskFor(&unknownConfig{kind: KindScript}); err == nil {
		t.Fatal("expected type mismatch to fail")
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	Register(r, KindScript, newScriptTask)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register(r, KindScript, newScriptTask)
}

func TestRegistry_Decode(t *testing.T) {
	src := `
path: "{InstallDir}/config.json"
content: "{}"
mode: "0600"
`
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatal(err)
	}

	cfg, err := DefaultRegistry().Decode(KindWriteFile, node.Content[0])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	wf, ok := cfg.(*WriteFileConfig)
	if !ok {
		t.Fatalf("expected *WriteFileConfig, got %T", cfg)
	}
	if wf.Path != "{InstallDir}/config.json" || wf.Mode != "0600" {
		t.Errorf("unexpected decode %+v", wf)
	}

	_, err = DefaultRegistry().Decode("shortcut", nil)
	if !errors.Is(err, errdefs.ErrNoTaskForKind) {
		t.Errorf("expected ErrNoTaskForKind, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), KindWriteFile) {
		t.Errorf("expected the known kinds in %q", err)
	}
}

func TestConfigurationsValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     workflow.TaskConfiguration
		wantErr bool
	}{
		{"script ok", &ScriptConfig{Script: "echo"}, false},
		{"script missing", &ScriptConfig{}, true},
		{"script bad output name", &ScriptConfig{Script: "echo", OutputVariable: "{x}"}, true},
		{"file ok", &WriteFileConfig{Path: "/tmp/x", Mode: "0755"}, false},
		{"file bad mode", &WriteFileConfig{Path: "/tmp/x", Mode: "rwx"}, true},
		{"file no path", &WriteFileConfig{}, true},
		{"dir no path", &CreateDirectoryConfig{}, true},
		{"registry ok", &RegistryValueConfig{Key: `HKCU\Software\Acme`, Type: "dword", Value: "1"}, false},
		{"registry bad root", &RegistryValueConfig{Key: `Software\Acme`}, true},
		{"registry bad type", &RegistryValueConfig{Key: `HKCU\Software\Acme`, Type: "binary"}, true},
		{"remove all", &RemoveRecordedConfig{}, false},
		{"remove bad kind", &RemoveRecordedConfig{Kinds: []string{"socket"}}, true},
		{"remove mixed case kind", &RemoveRecordedConfig{Kinds: []string{"Registry_Value"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigurationsCloneIsIndependent(t *testing.T) {
	orig := &ScriptConfig{Script: "{A}", Environment: map[string]string{"X": "{A}"}}
	clone := orig.Clone()

	r := variables.NewResolver(variables.NewMap(map[string]string{"A": "1"}))
	if err := clone.Substitute(r); err != nil {
		t.Fatal(err)
	}
	if orig.Script != "{A}" || orig.Environment["X"] != "{A}" {
		t.Errorf("original mutated: %+v", orig)
	}
	if c := clone.(*ScriptConfig); c.Script != "1" || c.Environment["X"] != "1" {
		t.Errorf("clone not resolved: %+v", c)
	}
}

func TestScriptTask(t *testing.T) {
	runner := &fakeRunner{stdout: "  /opt/tool\n"}
	tc := newContext(t, runner)

	task := newScriptTask(&ScriptConfig{Script: "which tool", WorkingDirectory: "/tmp", OutputVariable: "ToolPath"})
	if err := task.Execute(context.Background(), tc); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(runner.calls) != 1 || runner.calls[0].Dir != "/tmp" {
		t.Errorf("unexpected calls %+v", runner.calls)
	}
	if v, _ := tc.Variables.Get("toolpath"); v != "/opt/tool" {
		t.Errorf("output variable = %q", v)
	}

	failing := &fakeRunner{err: &local.ExitError{Command: "/bin/sh", ExitCode: 2}}
	if err := newScriptTask(&ScriptConfig{Script: "exit 2"}).Execute(context.Background(), newContext(t, failing)); err == nil {
		t.Error("expected script failure to surface")
	}

	dry := newContext(t, runner)
	dry.DryRun = true
	if err := task.Execute(context.Background(), dry); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 {
		t.Error("dry run must not invoke the runner")
	}
}

func TestWriteFileTask_RecordsCreatedPaths(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "settings.ini")
	tc := newContext(t, nil)

	task := newWriteFileTask(&WriteFileConfig{Path: target, Content: "k=v"})
	if err := task.Execute(context.Background(), tc); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil || string(data) != "k=v" {
		t.Fatalf("file not written: %q, %v", data, err)
	}
	if got := tc.Journal.ReadEntries(journal.File); !reflect.DeepEqual(got, []string{target}) {
		t.Errorf("files = %v", got)
	}
	wantDirs := []string{filepath.Join(root, "a"), filepath.Join(root, "a", "b")}
	if got := tc.Journal.ReadEntries(journal.Directory); !reflect.DeepEqual(got, wantDirs) {
		t.Errorf("directories = %v, want %v", got, wantDirs)
	}
}

func TestCreateDirectoryTask_ExistingIsNotRecorded(t *testing.T) {
	existing := t.TempDir()
	tc := newContext(t, nil)

	if err := newCreateDirectoryTask(&CreateDirectoryConfig{Path: existing}).Execute(context.Background(), tc); err != nil {
		t.Fatal(err)
	}
	if got := tc.Journal.ReadEntries(journal.Directory); len(got) != 0 {
		t.Errorf("pre-existing directory recorded: %v", got)
	}
}

func TestRemoveRecordedTask(t *testing.T) {
	root := t.TempDir()
	tc := newContext(t, nil)

	write := newWriteFileTask(&WriteFileConfig{Path: filepath.Join(root, "app", "bin", "tool"), Content: "x"})
	if err := write.Execute(context.Background(), tc); err != nil {
		t.Fatal(err)
	}
	tc.Record(journal.File, filepath.Join(root, "already-gone"))

	remove := newRemoveRecordedTask(&RemoveRecordedConfig{Kinds: []string{"File", "directory"}})

	dry := *tc
	dry.DryRun = true
	if err := remove.Execute(context.Background(), &dry); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "app", "bin", "tool")); err != nil {
		t.Fatal("dry run removed a file")
	}

	if err := remove.Execute(context.Background(), tc); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "app")); !os.IsNotExist(err) {
		t.Errorf("expected app directory removed, stat err = %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("unrecorded root must stay: %v", err)
	}
}

func TestRemoveRecordedTask_NonEmptyDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "data")
	tc := newContext(t, nil)

	if err := newCreateDirectoryTask(&CreateDirectoryConfig{Path: dir}).Execute(context.Background(), tc); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "user.db"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	strict := newRemoveRecordedTask(&RemoveRecordedConfig{Kinds: []string{"directory"}})
	if err := strict.Execute(context.Background(), tc); err == nil {
		t.Error("expected failure removing a non-empty directory")
	}

	lenient := newRemoveRecordedTask(&RemoveRecordedConfig{Kinds: []string{"directory"}, KeepNonEmptyDirectories: true})
	if err := lenient.Execute(context.Background(), tc); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistryValueEntry(t *testing.T) {
	entry := RegistryValueEntry(`HKCU\Software\Acme\`, "InstallPath")
	if entry != `HKCU\Software\Acme\InstallPath` {
		t.Errorf("entry = %s", entry)
	}
	key, name := SplitRegistryValueEntry(entry)
	if key != `HKCU\Software\Acme` || name != "InstallPath" {
		t.Errorf("split = %s, %s", key, name)
	}
}

func TestRegistryValueTask_UnsupportedOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("registry is available")
	}
	tc := newContext(t, nil)
	err := newRegistryValueTask(&RegistryValueConfig{Key: `HKCU\Software\Acme`, Name: "x"}).Execute(context.Background(), tc)
	if !errors.Is(err, errdefs.ErrUnsupportedOS) {
		t.Errorf("expected ErrUnsupportedOS, got %v", err)
	}
	if got := tc.Journal.ReadEntries(journal.RegistryValue); len(got) != 0 {
		t.Errorf("failed write must not be recorded: %v", got)
	}
}

func TestDeepestFirst(t *testing.T) {
	got := deepestFirst([]string{"/a", "/a/b/c", "/a/b"})
	want := []string{"/a/b/c", "/a/b", "/a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("deepestFirst = %v, want %v", got, want)
	}
}
