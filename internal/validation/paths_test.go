package validation

import (
	"path/filepath"
	"testing"
)

func TestValidateFilename(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		valid    bool
	}{
		{"simple", "file.txt", true},
		{"with_dots", "file.v1.2.3.txt", true},
		{"hidden_file", ".hidden", true},
		{"spaces", "my file.txt", true},
		{"unicode", "résumé.pdf", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"slash", "a/b.txt", false},
		{"traversal", "../etc/passwd", false},
		{"backslash", `a\b.txt`, false},
		{"null_byte", "a\x00b", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilename(tc.filename)
			if tc.valid && err != nil {
				t.Errorf("ValidateFilename(%q) unexpected error: %v", tc.filename, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("ValidateFilename(%q) expected an error", tc.filename)
			}
		})
	}
}

func TestValidatePathInDirectory(t *testing.T) {
	base := t.TempDir()

	testCases := []struct {
		name  string
		path  string
		base  string
		valid bool
	}{
		{"relative_inside", "file.txt", base, true},
		{"nested_inside", filepath.Join("a", "b", "c.txt"), base, true},
		{"absolute_inside", filepath.Join(base, "file.txt"), base, true},
		{"base_itself", base, base, true},
		{"dotdot_inside", filepath.Join("a", "..", "b.txt"), base, true},
		{"relative_escape", filepath.Join("..", "file.txt"), base, false},
		{"parent", "..", base, false},
		{"absolute_outside", filepath.Join(filepath.Dir(base), "other.txt"), base, false},
		{"sibling_prefix", base + "-evil", base, false},
		{"empty_path", "", base, false},
		{"empty_base", "file.txt", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathInDirectory(tc.path, tc.base)
			if tc.valid && err != nil {
				t.Errorf("ValidatePathInDirectory(%q, %q) unexpected error: %v", tc.path, tc.base, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("ValidatePathInDirectory(%q, %q) expected an error", tc.path, tc.base)
			}
		})
	}
}
