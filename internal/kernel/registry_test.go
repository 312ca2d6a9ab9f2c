package kernel

import (
	"strings"
	"testing"
)

func TestSelectBuiltins(t *testing.T) {
	for _, name := range []string{"python3", "python", "bash", "sh"} {
		spec, err := Select(name)
		if err != nil {
			t.Fatalf("Select(%q) error = %v", name, err)
		}
		if spec.Name != name {
			t.Errorf("Select(%q).Name = %q", name, spec.Name)
		}
		if spec.Command == "" {
			t.Errorf("Select(%q) has empty command", name)
		}
	}
}

func TestSelectDefaultAndNormalization(t *testing.T) {
	spec, err := Select("")
	if err != nil {
		t.Fatalf("Select(\"\") error = %v", err)
	}
	if spec.Name != "python3" {
		t.Errorf("default kernel = %q, want python3", spec.Name)
	}

	spec, err = Select("  BASH ")
	if err != nil {
		t.Fatalf("Select(\"  BASH \") error = %v", err)
	}
	if spec.Name != "bash" {
		t.Errorf("normalized kernel = %q, want bash", spec.Name)
	}
}

func TestSelectUnknown(t *testing.T) {
	if _, err := Select("fortran77"); err == nil {
		t.Fatal("Select should fail for unknown kernel")
	}
}

func TestMarkerStatement(t *testing.T) {
	spec, err := Select("python3")
	if err != nil {
		t.Fatalf("Select error = %v", err)
	}
	stmt := spec.MarkerStatement("TOKEN-1")
	if stmt != `print("TOKEN-1", flush=True)` {
		t.Errorf("MarkerStatement = %q", stmt)
	}

	spec, err = Select("bash")
	if err != nil {
		t.Fatalf("Select error = %v", err)
	}
	if got := spec.MarkerStatement("TOKEN-2"); got != `echo "TOKEN-2"` {
		t.Errorf("MarkerStatement = %q", got)
	}
}

func TestMatchesError(t *testing.T) {
	spec, err := Select("python3")
	if err != nil {
		t.Fatalf("Select error = %v", err)
	}

	traceback := strings.Join([]string{
		"Traceback (most recent call last):",
		`  File "<stdin>", line 1, in <module>`,
		"ValueError: boom",
	}, "\n")
	if !spec.MatchesError(traceback) {
		t.Error("python traceback should match error pattern")
	}
	if spec.MatchesError("just a warning\n") {
		t.Error("plain stderr noise should not match error pattern")
	}
	if spec.MatchesError("") {
		t.Error("empty stderr should not match")
	}
}

func TestStripPrompts(t *testing.T) {
	spec, err := Select("python3")
	if err != nil {
		t.Fatalf("Select error = %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{">>> x = 1", "x = 1"},
		{"... pass", "pass"},
		{">>> >>> nested", "nested"},
		{"no prompt here", "no prompt here"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := spec.StripPrompts(tt.in); got != tt.want {
			t.Errorf("StripPrompts(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
