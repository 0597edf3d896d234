package e2e_test

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPath      = "/org/example/Test"
	testInterface = "org.example.Test"
)

// sessionBus connects to the session bus or skips the test when there is
// none (CI containers usually run without one).
func sessionBus(t *testing.T) *dbus.Conn {
	t.Helper()
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("no session bus available")
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		t.Skipf("couldn't connect to session bus: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// startDbusjq runs the CLI against the emitter's unique name and returns a
// channel of stdout lines.
func startDbusjq(t *testing.T, sender string, args ...string) <-chan string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	base := []string{"run", "../../main.go",
		"-b", "session",
		"-n", sender,
		"-p", testPath,
		"-i", testInterface,
	}
	cmd := exec.CommandContext(ctx, "go", append(base, args...)...)
	// go run leaves the built binary as a child; stop the whole group
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM) }
	cmd.WaitDelay = 5 * time.Second
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		cancel()
		_ = cmd.Wait()
	})

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// emitUntilLine keeps emitting the signal until the CLI prints a line, since
// there is no way to know when its match rule is installed.
func emitUntilLine(t *testing.T, conn *dbus.Conn, lines <-chan string, member string, body ...interface{}) string {
	t.Helper()
	deadline := time.After(60 * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "dbusjq exited before printing")
			return line
		case <-ticker.C:
			require.NoError(t, conn.Emit(testPath, testInterface+"."+member, body...))
		case <-deadline:
			t.Fatal("timed out waiting for dbusjq output")
		}
	}
}

func TestEndToEnd_DefaultQuery(t *testing.T) {
	conn := sessionBus(t)
	lines := startDbusjq(t, conn.Names()[0])

	line := emitUntilLine(t, conn, lines, "Changed", "com.example.Iface", int32(42))
	assert.Equal(t, `{"data":["com.example.Iface",42],"signal":"Changed","signature":"(si)"}`, line)
}

func TestEndToEnd_FilteredRawOutput(t *testing.T) {
	conn := sessionBus(t)
	lines := startDbusjq(t, conn.Names()[0],
		"-s", "Changed",
		"-r",
		"--arg", "site=lab",
		"-q", `"\($site) \(.data[0].Volume) \($interface)"`,
	)

	props := map[string]dbus.Variant{
		"Volume": dbus.MakeVariant(uint32(7)),
	}
	line := emitUntilLine(t, conn, lines, "Changed", props)
	assert.Equal(t, "lab 7 "+testInterface, line)
}
