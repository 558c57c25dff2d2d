package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// display is the virtual X server a headful Chrome renders into.
type display struct {
	name string
	cmd  *exec.Cmd
}

// startDisplay runs Xvfb on name (":99") and waits for its socket.
func startDisplay(name string) (*display, error) {
	cmd := exec.Command("Xvfb", name, "-screen", "0", "1920x1080x24", "-nolisten", "tcp", "-ac")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start Xvfb: %w", err)
	}
	d := &display{name: name, cmd: cmd}

	sock := "/tmp/.X11-unix/X" + strings.TrimPrefix(name, ":")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(sock); err == nil {
			return d, nil
		}
		if time.Now().After(deadline) {
			d.stop()
			return nil, fmt.Errorf("Xvfb %s: no socket at %s", name, sock)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (d *display) stop() {
	if d == nil || d.cmd.Process == nil {
		return
	}
	d.cmd.Process.Kill()
	d.cmd.Wait()
}
