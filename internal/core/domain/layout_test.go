package domain_test

import (
	"path/filepath"
	"testing"

	"go.trai.ch/rbt/internal/core/domain"
)

func TestLayoutPaths(t *testing.T) {
	l := domain.NewLayout("")
	fp := domain.Fingerprint("ab23456789abcdef")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "Root", got: l.Root, expected: ".rbt"},
		{name: "StoreDir", got: l.StoreDir(), expected: filepath.Join(".rbt", "store")},
		{name: "StorePath", got: l.StorePath(fp), expected: filepath.Join(".rbt", "store", "ab", "ab23456789abcdef")},
		{name: "ManifestPath", got: l.ManifestPath(fp), expected: filepath.Join(".rbt", "cache", "ab", "ab23456789abcdef.json")},
		{name: "WorkspacePath", got: l.WorkspacePath(fp), expected: filepath.Join(".rbt", "workspaces", "ab23456789abcdef")},
		{name: "StagingDir", got: l.StagingDir(), expected: filepath.Join(".rbt", "staging")},
		{name: "FileHashesPath", got: l.FileHashesPath(), expected: filepath.Join(".rbt", "file_hashes.json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestSettings_Workers(t *testing.T) {
	if got := (domain.Settings{WorkerThreads: 3}).Workers(); got != 3 {
		t.Errorf("Workers() = %d, want 3", got)
	}
	if got := (domain.Settings{}).Workers(); got < 1 {
		t.Errorf("Workers() = %d, want at least 1", got)
	}
}

func TestParseCancelMode(t *testing.T) {
	for in, want := range map[string]domain.CancelMode{"": domain.CancelKill, "kill": domain.CancelKill, "finish": domain.CancelFinish} {
		got, err := domain.ParseCancelMode(in)
		if err != nil || got != want {
			t.Errorf("ParseCancelMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := domain.ParseCancelMode("explode"); err == nil {
		t.Error("ParseCancelMode(explode) expected error")
	}
}
