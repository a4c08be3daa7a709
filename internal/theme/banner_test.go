package theme

import (
	"strings"
	"testing"
)

func TestBannerMentionsBluesky(t *testing.T) {
	if !strings.Contains(Banner(), "Bluesky") {
		t.Fatalf("banner missing tagline")
	}
}
