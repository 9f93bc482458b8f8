package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestShellRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	r := NewShellRunner()
	ctx := context.Background()

	tests := []struct {
		name     string
		cmd      Command
		wantCode int
		wantOut  string
		wantErr  bool
	}{
		{
			name:    "success",
			cmd:     ShellCommand("echo hello"),
			wantOut: "hello\n",
		},
		{
			name:     "non-zero exit",
			cmd:      ShellCommand("echo oops >&2; exit 3"),
			wantCode: 3,
			wantErr:  true,
		},
		{
			name:    "extra env",
			cmd:     Command{Name: "/bin/sh", Args: []string{"-c", "printf %s \"$FROYO_TEST\""}, Env: map[string]string{"FROYO_TEST": "x"}},
			wantOut: "x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Run(ctx, tt.cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if res == nil {
				t.Fatal("expected a result")
			}
			if res.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantCode)
			}
			if tt.wantOut != "" && res.Stdout != tt.wantOut {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantOut)
			}
			if tt.wantErr {
				var exitErr *ExitError
				if !errors.As(err, &exitErr) {
					t.Fatalf("expected *ExitError, got %T", err)
				}
				if !strings.Contains(exitErr.Error(), "oops") {
					t.Errorf("expected stderr in error message, got %q", exitErr.Error())
				}
			}
		})
	}
}

func TestShellRunner_MissingExecutable(t *testing.T) {
	_, err := NewShellRunner().Run(context.Background(), Command{Name: "froyo-definitely-not-installed"})
	if err == nil {
		t.Fatal("expected error for missing executable")
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		t.Error("missing executable should not be reported as an exit code")
	}
}

func TestHTTPDownloader_Download(t *testing.T) {
	payload := []byte("installer-bytes")
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewHTTPDownloader(dir, srv.Client())

	t.Run("verified", func(t *testing.T) {
		path, err := d.Download(context.Background(), Request{URL: srv.URL + "/files/setup.exe", SHA256: strings.ToUpper(digest)})
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		if path != filepath.Join(dir, "setup.exe") {
			t.Errorf("unexpected path %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != string(payload) {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("explicit file name", func(t *testing.T) {
		path, err := d.Download(context.Background(), Request{URL: srv.URL + "/dl?id=1", FileName: "runtime.pkg"})
		if err != nil {
			t.Fatalf("Download failed: %v", err)
		}
		if filepath.Base(path) != "runtime.pkg" {
			t.Errorf("unexpected path %s", path)
		}
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		_, err := d.Download(context.Background(), Request{URL: srv.URL + "/bad.bin", SHA256: strings.Repeat("0", 64)})
		if err == nil {
			t.Fatal("expected checksum error")
		}
		if _, statErr := os.Stat(filepath.Join(dir, "bad.bin")); !os.IsNotExist(statErr) {
			t.Error("file with wrong digest should not be kept")
		}
	})

	t.Run("http error", func(t *testing.T) {
		_, err := d.Download(context.Background(), Request{URL: srv.URL + "/missing"})
		var dlErr *DownloadError
		if !errors.As(err, &dlErr) {
			t.Fatalf("expected *DownloadError, got %v", err)
		}
	})
}
