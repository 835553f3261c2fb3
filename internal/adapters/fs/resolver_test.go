package fs_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rbt/internal/adapters/fs"
	"go.trai.ch/rbt/internal/core/domain"
)

func TestResolver_ResolveInputs(t *testing.T) {
	tmpDir := t.TempDir()
	for _, f := range []string{"z.txt", "a.txt", "m.txt", "c.log", "src/main.c"} {
		writeFile(t, filepath.Join(tmpDir, filepath.FromSlash(f)), "content")
	}

	tests := []struct {
		name     string
		patterns []string
		expected []string
	}{
		{name: "glob is sorted", patterns: []string{"*.txt"}, expected: []string{"a.txt", "m.txt", "z.txt"}},
		{name: "multiple patterns", patterns: []string{"*.log", "a.txt"}, expected: []string{"a.txt", "c.log"}},
		{name: "duplicates collapse", patterns: []string{"a.txt", "*.txt", "a.txt"}, expected: []string{"a.txt", "m.txt", "z.txt"}},
		{name: "nested paths are slash separated", patterns: []string{"src/*.c"}, expected: []string{"src/main.c"}},
		{name: "directories resolve as themselves", patterns: []string{"src"}, expected: []string{"src"}},
	}

	resolver := fs.NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := resolver.ResolveInputs(tt.patterns, tmpDir)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resolved)
		})
	}
}

func TestResolver_ResolveInputs_GlobError(t *testing.T) {
	resolver := fs.NewResolver()

	_, err := resolver.ResolveInputs([]string{"["}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to glob path")
}

func TestResolver_ResolveInputs_NoMatches(t *testing.T) {
	resolver := fs.NewResolver()

	_, err := resolver.ResolveInputs([]string{"*.nonexistent"}, t.TempDir())
	require.ErrorIs(t, err, domain.ErrInputNotFound)
	assert.Contains(t, err.Error(), "input not found")
}

func TestResolver_ResolveInputs_RejectsEscapingPatterns(t *testing.T) {
	root := t.TempDir()
	// A file at the re-rooted location must not be picked up.
	writeFile(t, filepath.Join(root, "etc", "hosts"), "content")

	tests := []struct {
		name    string
		pattern string
		target  error
	}{
		{name: "absolute", pattern: "/etc/hosts", target: domain.ErrAbsolutePath},
		{name: "parent", pattern: "../secret.txt", target: domain.ErrParentPath},
		{name: "nested parent", pattern: "src/../../secret.txt", target: domain.ErrParentPath},
	}

	resolver := fs.NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := resolver.ResolveInputs([]string{tt.pattern}, root)
			require.ErrorIs(t, err, tt.target)
			assert.Nil(t, resolved)
		})
	}
}
