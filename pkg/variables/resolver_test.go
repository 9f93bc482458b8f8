package variables

import (
	"testing"

	"github.com/openfroyo/installer/pkg/errdefs"
)

func TestResolver_PriorityOrder(t *testing.T) {
	r := NewResolver(
		NewMap(map[string]string{"A": "1"}),
		NewMap(map[string]string{"A": "2", "B": "3"}),
	)

	got, err := r.String("{A}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1" {
		t.Errorf("{A} = %q, want %q", got, "1")
	}

	got, err = r.String("{A}-{B}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1-3" {
		t.Errorf("{A}-{B} = %q, want %q", got, "1-3")
	}
}

func TestResolver_Unresolved(t *testing.T) {
	r := NewResolver(NewMap(map[string]string{"A": "1"}))

	_, err := r.String("prefix {B} suffix")
	if err == nil {
		t.Fatal("expected unresolved variable error")
	}
	if !errdefs.IsUnresolvedVariable(err) {
		t.Errorf("expected unresolved-variable kind, got %v", err)
	}
}

func TestResolver_IsSinglePass(t *testing.T) {
	r := NewResolver(NewMap(map[string]string{
		"Outer": "{Inner}",
		"Inner": "expanded",
	}))

	got, err := r.String("{Outer}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "{Inner}" {
		t.Errorf("resolved value was re-expanded: got %q, want %q", got, "{Inner}")
	}
}

func TestResolver_Identifiers(t *testing.T) {
	r := NewResolver(NewMap(map[string]string{
		"Application.Install-Dir": `C:\App`,
		"name_1":                  "x",
	}))

	tests := []struct {
		in   string
		want string
	}{
		{"{Application.Install-Dir}\\bin", `C:\App\bin`},
		{"{name_1}{name_1}", "xx"},
		{"no placeholders", "no placeholders"},
		{"{{name_1}}", "{{name_1}}"},
		{"json: {{\"a\": 1}", "json: {{\"a\": 1}"},
		{"{ spaced }", "{ spaced }"},
		{"{}", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.String(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolver_CaseInsensitiveKeys(t *testing.T) {
	m := NewMap(nil)
	m.Set("InstallDir", "/opt/app")

	got, err := NewResolver(m).String("{installdir}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/opt/app" {
		t.Errorf("got %q", got)
	}

	m.Set("INSTALLDIR", "/usr/local/app")
	if m.Len() != 1 {
		t.Errorf("expected keys differing only by case to collapse, got %v", m.Keys())
	}
}

func TestResolver_FieldsAndWith(t *testing.T) {
	base := NewResolver(NewMap(map[string]string{"Dir": "/opt"}))
	r := base.With(NewMap(map[string]string{"Dir": "/srv", "File": "app.conf"}))

	path := "{Dir}/{File}"
	untouched := "plain"
	if err := r.Fields(&path, &untouched, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/srv/app.conf" {
		t.Errorf("path = %q", path)
	}

	args := []string{"--dir", "{Dir}"}
	if err := base.Slice(args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args[1] != "/opt" {
		t.Errorf("args = %v", args)
	}
}

func TestDeferredKeepsPlaceholder(t *testing.T) {
	r := NewResolver(NewMap(map[string]string{"A": "1"}), Deferred("Output"))

	got, err := r.String("{A} {Output}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1 {Output}" {
		t.Errorf("got %q", got)
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("FROYO_TEST_VALUE", "from-env")

	r := NewResolver(Env())
	got, err := r.String("{Env.FROYO_TEST_VALUE}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-env" {
		t.Errorf("got %q", got)
	}

	if _, err := r.String("{FROYO_TEST_VALUE}"); err == nil {
		t.Error("expected unprefixed environment lookups to be unresolved")
	}
}
