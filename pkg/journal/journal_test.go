package journal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/openfroyo/installer/pkg/errdefs"
)

func TestCreateOrRead_CreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "uninstall.journal")

	j, err := CreateOrRead(path)
	if err != nil {
		t.Fatalf("CreateOrRead failed: %v", err)
	}
	if j.Len() != 0 {
		t.Errorf("expected empty journal, got %d entries", j.Len())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected backing file to exist: %v", err)
	}
	if data[0] != CurrentVersion || data[1] != '\n' {
		t.Errorf("unexpected header %v", data[:2])
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uninstall.journal")

	j, err := CreateOrRead(path)
	if err != nil {
		t.Fatalf("CreateOrRead failed: %v", err)
	}

	j.AddEntry(File, "a.txt")
	j.AddEntry(Directory, "d")
	j.AddEntry(RegistryKey, "k")
	j.AddEntry(RegistryValue, "v")
	if err := j.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reloaded, err := CreateOrRead(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	want := map[Kind][]string{
		File:          {"a.txt"},
		Directory:     {"d"},
		RegistryKey:   {"k"},
		RegistryValue: {"v"},
	}
	for kind, values := range want {
		if got := reloaded.ReadEntries(kind); !reflect.DeepEqual(got, values) {
			t.Errorf("ReadEntries(%s) = %v, want %v", kind, got, values)
		}
	}
}

func TestJournal_DuplicatesAreIgnored(t *testing.T) {
	j, err := CreateOrRead(filepath.Join(t.TempDir(), "j"))
	if err != nil {
		t.Fatalf("CreateOrRead failed: %v", err)
	}

	j.AddEntry(File, "a.txt")
	j.AddEntry(File, "a.txt")
	j.AddEntry(File, "b.txt")

	if got := len(j.ReadEntries(File)); got != 2 {
		t.Errorf("expected 2 unique files, got %d", got)
	}
	if got := len(j.ReadEntries(Directory)); got != 0 {
		t.Errorf("expected kinds to be disjoint, got %d directories", got)
	}
}

func TestJournal_FlushRecreatesVanishedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")
	j, err := CreateOrRead(path)
	if err != nil {
		t.Fatalf("CreateOrRead failed: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	j.AddEntry(Directory, "/opt/app")
	if err := j.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	reloaded, err := CreateOrRead(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.ReadEntries(Directory); len(got) != 1 || got[0] != "/opt/app" {
		t.Errorf("unexpected entries after recreate: %v", got)
	}
}

func TestJournal_FlushIsDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")
	j, _ := CreateOrRead(path)
	for _, f := range []string{"c", "a", "b"} {
		j.AddEntry(File, f)
	}
	if err := j.Flush(); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(path)

	if err := j.Flush(); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)

	if !bytes.Equal(first, second) {
		t.Error("flushing an unchanged journal changed the file")
	}
}

func TestCreateOrRead_UnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")
	if err := os.WriteFile(path, []byte{9, '\n', '{', '}'}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := CreateOrRead(path)
	if err == nil {
		t.Fatal("expected error for unknown version")
	}
	if !errors.Is(err, errdefs.ErrUnknownJournalVersion) {
		t.Errorf("expected ErrUnknownJournalVersion, got %v", err)
	}
	if !errdefs.IsJournal(err) {
		t.Errorf("expected journal error kind, got %v", err)
	}
}

func TestCreateOrRead_MalformedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")
	if err := os.WriteFile(path, []byte(`{"FilesToRemove":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := CreateOrRead(path); err == nil {
		t.Fatal("expected error for headerless file")
	}
}

func TestReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j")
	inner, err := CreateOrRead(path)
	if err != nil {
		t.Fatalf("CreateOrRead failed: %v", err)
	}
	inner.AddEntry(File, "installed.dll")
	if err := inner.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ro := ReadOnly(inner)
	ro.AddEntry(File, "new.dll")
	ro.AddEntry(RegistryKey, `HKCU\Software\App`)
	if err := ro.Flush(); err != nil {
		t.Fatalf("read-only Flush returned error: %v", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("read-only journal changed the persisted file")
	}

	if got := ro.ReadEntries(File); !reflect.DeepEqual(got, []string{"installed.dll"}) {
		t.Errorf("ReadEntries through decorator = %v", got)
	}
	if ReadOnly(ro) != ro {
		t.Error("wrapping a read-only journal twice should return the same decorator")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Registry_Value"); err != nil || k != RegistryValue {
		t.Errorf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind("socket"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
