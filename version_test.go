package ragent

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	if GetVersion() == "" || GetVersion() != Version {
		t.Errorf("GetVersion() = %q, want %q", GetVersion(), Version)
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	ua := UserAgent()
	if !strings.HasPrefix(ua, "ragent/"+Version+" ") {
		t.Errorf("UserAgent() = %q, want ragent/%s prefix", ua, Version)
	}
}
