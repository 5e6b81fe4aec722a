package version

import (
	"strings"
	"testing"
)

func TestSummary(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	tests := []struct {
		version, commit, want string
	}{
		{"1.2.0", "none", "1.2.0"},
		{"", "", "dev"},
		{"1.2.0", "abcdef1234", "1.2.0 (abcdef1)"},
	}

	for _, tt := range tests {
		Version, Commit = tt.version, tt.commit
		if got := Summary(); got != tt.want {
			t.Errorf("Summary() with %q/%q = %q, want %q", tt.version, tt.commit, got, tt.want)
		}
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()

	if !strings.HasPrefix(ua, "cci_chat/") {
		t.Errorf("Expected cci_chat/ prefix, got %q", ua)
	}
	if !strings.Contains(ua, Platform()) {
		t.Errorf("Expected platform in %q", ua)
	}
}
