package cmdlog

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/kerosindigital/bsky.link/internal/logging"
)

func TestRunLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	defer logging.SetOutput(os.Stdout)

	if err := Run("feed", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	if err := Run("feed", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("error not returned: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"message":"feed_ok"`) || !strings.Contains(out, `"message":"feed_error"`) {
		t.Fatalf("log output: %s", out)
	}
}
