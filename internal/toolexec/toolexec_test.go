package toolexec

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestExec_CapturesOutputAndFailure(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	res, err := Exec{}.Run(context.Background(), Cmd{Path: "/bin/sh", Args: []string{"-c", "echo out; echo err >&2"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" || strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Fatalf("unexpected output %q / %q", res.Stdout, res.Stderr)
	}

	_, err = Exec{}.Run(context.Background(), Cmd{Path: "/bin/sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if ee.Code != 3 || !strings.Contains(ee.Error(), "boom") {
		t.Fatalf("unexpected exit error %v", ee)
	}
}
