package dependencies

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
)

// fakeRunner records commands and answers from a canned table keyed by
// executable name.
type fakeRunner struct {
	calls   []local.Command
	outputs map[string]string
	errs    map[string]error
}

func (f *fakeRunner) Run(_ context.Context, cmd local.Command) (*local.Result, error) {
	f.calls = append(f.calls, cmd)
	if err, ok := f.errs[cmd.Name]; ok {
		return nil, err
	}
	return &local.Result{Stdout: f.outputs[cmd.Name]}, nil
}

type fakeDownloader struct {
	path string
	reqs []local.Request
}

func (f *fakeDownloader) Download(_ context.Context, req local.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.path, nil
}

func mustRuntime(t *testing.T, rng string, flavor Flavor, downloads ...PlatformDownload) *RuntimeDependency {
	t.Helper()
	dep, err := NewRuntimeDependency("dotnet", rng, flavor, downloads...)
	if err != nil {
		t.Fatalf("NewRuntimeDependency failed: %v", err)
	}
	return dep
}

func TestTrySatisfyDependency(t *testing.T) {
	dep := mustRuntime(t, ">=5", FlavorRuntime)

	tests := []struct {
		name   string
		offers []string
		want   string
		wantOK bool
	}{
		{name: "newer satisfies", offers: []string{"5.0.1"}, want: "5.0.1", wantOK: true},
		{name: "older does not", offers: []string{"3.1.0"}, wantOK: false},
		{name: "first satisfying wins", offers: []string{"3.1.0", "6.0.0", "8.0.0"}, want: "6.0.0", wantOK: true},
		{name: "unparsable offer is skipped", offers: []string{"latest", "7.0"}, want: "7.0", wantOK: true},
		{name: "no methods", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var methods []AcquisitionMethod
			for _, o := range tt.offers {
				methods = append(methods, &DownloadInstall{Version: o, URL: "https://example.com/" + o})
			}

			m, ok := TrySatisfyDependency(dep, methods)
			if ok != tt.wantOK {
				t.Fatalf("TrySatisfyDependency ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && m.Offers() != tt.want {
				t.Errorf("selected %s, want %s", m.Offers(), tt.want)
			}
		})
	}
}

func TestHighestSatisfying(t *testing.T) {
	c, err := ParseRange(">=5")
	if err != nil {
		t.Fatal(err)
	}

	got, ok := HighestSatisfying(c, []string{"5.0", "5.1"})
	if !ok || got != "5.1" {
		t.Errorf("HighestSatisfying = %q, %v, want 5.1", got, ok)
	}

	got, ok = HighestSatisfying(c, []string{"5.1", "5.0"})
	if !ok || got != "5.1" {
		t.Errorf("order of candidates should not matter, got %q", got)
	}

	if _, ok := HighestSatisfying(c, []string{"3.1"}); ok {
		t.Error("expected no match for 3.1")
	}
}

func TestLinuxPackageName(t *testing.T) {
	tests := []struct {
		rng         string
		flavor      Flavor
		manager     PackageManager
		wantName    string
		wantVersion string
		wantOK      bool
	}{
		{">=5", FlavorRuntime, aptGet, "dotnet-runtime-9.0", "9.0", true},
		{"~8.0", FlavorASPNetCore, dnf, "aspnetcore-runtime-8.0", "8.0", true},
		{"6.0.x", FlavorSDK, aptGet, "dotnet-sdk-6.0", "6.0", true},
		{">=7.0, <9.0", FlavorRuntime, apk, "dotnet8-runtime", "8.0", true},
		{">=8", FlavorDesktop, aptGet, "", "", false},
		{">=10", FlavorRuntime, aptGet, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.rng+"/"+string(tt.flavor), func(t *testing.T) {
			c, err := ParseRange(tt.rng)
			if err != nil {
				t.Fatal(err)
			}
			name, version, ok := LinuxPackageName(c, tt.flavor, tt.manager)
			if ok != tt.wantOK || name != tt.wantName || version != tt.wantVersion {
				t.Errorf("LinuxPackageName = (%q, %q, %v), want (%q, %q, %v)",
					name, version, ok, tt.wantName, tt.wantVersion, tt.wantOK)
			}
		})
	}
}

func TestPackageManagerFor(t *testing.T) {
	tests := []struct {
		info    platform.Info
		want    string
		wantErr bool
	}{
		{info: platform.Info{OS: platform.Linux, Distribution: "ubuntu"}, want: "apt-get"},
		{info: platform.Info{OS: platform.Linux, Distribution: "Fedora"}, want: "dnf"},
		{info: platform.Info{OS: platform.Linux, Distribution: "alpine"}, want: "apk"},
		{info: platform.Info{OS: platform.Linux, Distribution: "opensuse-leap"}, want: "zypper"},
		{info: platform.Info{OS: platform.Windows}, want: "winget"},
		{info: platform.Info{OS: platform.MacOS}, want: "brew"},
		{info: platform.Info{OS: platform.Linux, Distribution: "gentoo"}, wantErr: true},
		{info: platform.Info{OS: platform.Linux}, wantErr: true},
		{info: platform.Info{OS: "plan9"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.info.String(), func(t *testing.T) {
			m, err := PackageManagerFor(tt.info)
			if tt.wantErr {
				if !errdefs.IsUnsupportedPlatform(err) {
					t.Fatalf("expected unsupported platform error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.Name != tt.want {
				t.Errorf("manager = %s, want %s", m.Name, tt.want)
			}
		})
	}
}

func TestRuntimeDependency_Methods(t *testing.T) {
	winDownload := PlatformDownload{
		OS:   platform.Windows,
		Arch: "amd64",
		DownloadInstall: DownloadInstall{
			Version: "8.0.5",
			URL:     "https://example.com/dotnet-runtime-8.0.5-win-x64.exe",
			Args:    []string{"/install", "/quiet", "/norestart"},
		},
	}
	dep := mustRuntime(t, ">=8.0", FlavorRuntime, winDownload)

	t.Run("windows prefers download then winget", func(t *testing.T) {
		methods, err := dep.Methods(platform.Info{OS: platform.Windows, Arch: "amd64"})
		if err != nil {
			t.Fatal(err)
		}
		if len(methods) != 2 {
			t.Fatalf("expected 2 methods, got %d", len(methods))
		}
		if _, ok := methods[0].(*DownloadInstall); !ok {
			t.Errorf("expected download first, got %T", methods[0])
		}
		pm, ok := methods[1].(*PackageManagerInstall)
		if !ok || pm.Package != "Microsoft.DotNet.Runtime.9" {
			t.Errorf("unexpected winget method %+v", methods[1])
		}
	})

	t.Run("arch mismatch drops download", func(t *testing.T) {
		methods, err := dep.Methods(platform.Info{OS: platform.Windows, Arch: "arm64"})
		if err != nil {
			t.Fatal(err)
		}
		if len(methods) != 1 {
			t.Fatalf("expected only winget, got %d methods", len(methods))
		}
	})

	t.Run("linux package manager", func(t *testing.T) {
		methods, err := dep.Methods(platform.Info{OS: platform.Linux, Arch: "amd64", Distribution: "ubuntu"})
		if err != nil {
			t.Fatal(err)
		}
		if len(methods) != 1 || methods[0].Offers() != "9.0" {
			t.Fatalf("unexpected methods %v", methods)
		}
	})

	t.Run("unknown distribution", func(t *testing.T) {
		_, err := dep.Methods(platform.Info{OS: platform.Linux, Distribution: "gentoo"})
		if !errdefs.IsUnsupportedPlatform(err) {
			t.Fatalf("expected unsupported platform, got %v", err)
		}
	})

	t.Run("abstract os", func(t *testing.T) {
		_, err := dep.Methods(platform.Info{OS: platform.Any})
		if !errors.Is(err, errdefs.ErrUnsupportedOS) {
			t.Fatalf("expected ErrUnsupportedOS, got %v", err)
		}
	})
}

func TestNewRuntimeDependency_Invalid(t *testing.T) {
	if _, err := NewRuntimeDependency("dotnet", "not a range", FlavorRuntime); err == nil {
		t.Error("expected error for invalid range")
	}
	if _, err := NewRuntimeDependency("dotnet", ">=8", "jre"); err == nil {
		t.Error("expected error for invalid flavor")
	}
	if _, err := NewRuntimeDependency("", ">=8", FlavorRuntime); err == nil {
		t.Error("expected error for missing name")
	}
	bad := PlatformDownload{OS: platform.Windows, DownloadInstall: DownloadInstall{Version: "8.0.1", URL: "not-a-url"}}
	if _, err := NewRuntimeDependency("dotnet", ">=8", FlavorRuntime, bad); err == nil {
		t.Error("expected error for invalid download url")
	}
}

const listRuntimes = `Microsoft.AspNetCore.App 8.0.1 [/usr/share/dotnet/shared/Microsoft.AspNetCore.App]
Microsoft.NETCore.App 6.0.25 [/usr/share/dotnet/shared/Microsoft.NETCore.App]
Microsoft.NETCore.App 8.0.1 [/usr/share/dotnet/shared/Microsoft.NETCore.App]
`

func TestParseInstallations(t *testing.T) {
	got := ParseInstallations(listRuntimes, FlavorRuntime)
	want := []Installation{
		{Component: "Microsoft.NETCore.App", Version: "6.0.25", Path: "/usr/share/dotnet/shared/Microsoft.NETCore.App"},
		{Component: "Microsoft.NETCore.App", Version: "8.0.1", Path: "/usr/share/dotnet/shared/Microsoft.NETCore.App"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseInstallations = %+v, want %+v", got, want)
	}

	sdks := ParseInstallations("7.0.404 [/usr/share/dotnet/sdk]\n8.0.100 [/usr/share/dotnet/sdk]\n", FlavorSDK)
	if len(sdks) != 2 || sdks[1].Version != "8.0.100" {
		t.Errorf("unexpected sdk parse %+v", sdks)
	}
}

func TestRuntimeDependency_IsAlreadyInstalled(t *testing.T) {
	tests := []struct {
		name   string
		rng    string
		flavor Flavor
		runner *fakeRunner
		want   bool
	}{
		{
			name:   "matching runtime",
			rng:    ">=8.0",
			flavor: FlavorRuntime,
			runner: &fakeRunner{outputs: map[string]string{"dotnet": listRuntimes}},
			want:   true,
		},
		{
			name:   "flavor must match",
			rng:    ">=8.0",
			flavor: FlavorDesktop,
			runner: &fakeRunner{outputs: map[string]string{"dotnet": listRuntimes}},
			want:   false,
		},
		{
			name:   "range not satisfied",
			rng:    ">=9.0",
			flavor: FlavorASPNetCore,
			runner: &fakeRunner{outputs: map[string]string{"dotnet": listRuntimes}},
			want:   false,
		},
		{
			name:   "dotnet missing",
			rng:    ">=8.0",
			flavor: FlavorRuntime,
			runner: &fakeRunner{errs: map[string]error{"dotnet": errors.New("executable file not found")}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dep := mustRuntime(t, tt.rng, tt.flavor)
			got, err := dep.IsAlreadyInstalled(context.Background(), tt.runner)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAlreadyInstalled = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("sdk listing", func(t *testing.T) {
		runner := &fakeRunner{outputs: map[string]string{"dotnet": "8.0.100 [/usr/share/dotnet/sdk]\n"}}
		dep := mustRuntime(t, "8.0.x", FlavorSDK)
		ok, err := dep.IsAlreadyInstalled(context.Background(), runner)
		if err != nil || !ok {
			t.Fatalf("IsAlreadyInstalled = %v, %v", ok, err)
		}
		if runner.calls[0].Args[0] != "--list-sdks" {
			t.Errorf("expected --list-sdks, got %v", runner.calls[0].Args)
		}
	})
}

func TestPackageManagerInstall_Acquire(t *testing.T) {
	runner := &fakeRunner{}
	m := &PackageManagerInstall{Manager: aptGet, Package: "dotnet-runtime-8.0", Version: "8.0"}

	if err := m.Acquire(context.Background(), Services{Runner: runner}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	want := local.Command{Name: "apt-get", Args: []string{"install", "-y", "dotnet-runtime-8.0"}}
	if len(runner.calls) != 1 || !reflect.DeepEqual(runner.calls[0], want) {
		t.Errorf("unexpected calls %+v", runner.calls)
	}
}

func TestPackageManagerInstall_AcquireFailure(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"winget": &local.ExitError{Command: "winget", ExitCode: 1}}}
	m := &PackageManagerInstall{Manager: winget, Package: "Microsoft.DotNet.Runtime.8", Version: "8.0"}

	err := m.Acquire(context.Background(), Services{Runner: runner})
	if !errdefs.IsDependency(err) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if runner.calls[0].Args[2] != "Microsoft.DotNet.Runtime.8" {
		t.Errorf("package id not substituted: %v", runner.calls[0].Args)
	}
}

func TestDownloadInstall_Acquire(t *testing.T) {
	runner := &fakeRunner{}
	dl := &fakeDownloader{path: "/cache/dotnet-installer.exe"}
	m := &DownloadInstall{
		Version: "8.0.5",
		URL:     "https://example.com/dotnet-installer.exe",
		SHA256:  "abc",
		Args:    []string{"/install", "/quiet", "/log", "{file}.log"},
	}

	if err := m.Acquire(context.Background(), Services{Runner: runner, Downloader: dl}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(dl.reqs) != 1 || dl.reqs[0].SHA256 != "abc" {
		t.Errorf("unexpected download requests %+v", dl.reqs)
	}
	want := local.Command{
		Name: "/cache/dotnet-installer.exe",
		Args: []string{"/install", "/quiet", "/log", "/cache/dotnet-installer.exe.log"},
	}
	if len(runner.calls) != 1 || !reflect.DeepEqual(runner.calls[0], want) {
		t.Errorf("unexpected command %+v", runner.calls)
	}
	if m.Args[3] != "{file}.log" {
		t.Error("Acquire must not rewrite the declared arguments")
	}
}

func TestToolDependency(t *testing.T) {
	dep, err := NewToolDependency("git", ">=2.30", "git",
		WithSources(
			ToolSource{OS: platform.Linux, Package: "git", Version: "2.43.0"},
			ToolSource{OS: platform.Windows, Download: &DownloadInstall{Version: "2.44.0", URL: "https://example.com/git.exe"}},
		),
	)
	if err != nil {
		t.Fatalf("NewToolDependency failed: %v", err)
	}

	ok, err := dep.IsAlreadyInstalled(context.Background(), &fakeRunner{outputs: map[string]string{"git": "git version 2.43.0\n"}})
	if err != nil || !ok {
		t.Errorf("IsAlreadyInstalled = %v, %v", ok, err)
	}

	ok, _ = dep.IsAlreadyInstalled(context.Background(), &fakeRunner{outputs: map[string]string{"git": "git version 2.20.1\n"}})
	if ok {
		t.Error("2.20.1 should not satisfy >=2.30")
	}

	methods, err := dep.Methods(platform.Info{OS: platform.Linux, Distribution: "debian"})
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 || methods[0].Describe() != "apt-get install git (2.43.0)" {
		t.Errorf("unexpected linux methods %v", methods)
	}

	if _, err := dep.Methods(platform.Info{OS: platform.MacOS}); !errdefs.IsUnsupportedPlatform(err) {
		t.Errorf("expected unsupported platform on darwin, got %v", err)
	}

	if _, err := NewToolDependency("git", ">=2", "git", WithSources(ToolSource{OS: platform.Linux})); err == nil {
		t.Error("expected error for source without package or download")
	}
}
