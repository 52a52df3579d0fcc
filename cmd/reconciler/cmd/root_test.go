package cmd

import (
	"strings"
	"testing"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion, origCommit, origDate := version, gitCommit, date
	t.Cleanup(func() {
		SetVersionInfo(origVersion, origCommit, origDate)
	})

	SetVersionInfo("dev", "abc1234", "2026-08-30")
	if got := getVersionString(); !strings.Contains(got, "abc1234") {
		t.Errorf("dev version string = %q, want the commit hash included", got)
	}

	SetVersionInfo("1.2.0", "abc1234", "2026-08-30")
	if got := getVersionString(); got != "1.2.0" {
		t.Errorf("release version string = %q, want 1.2.0", got)
	}
	if rootCmd.Version != "1.2.0" {
		t.Errorf("rootCmd.Version = %q, want 1.2.0", rootCmd.Version)
	}
}
