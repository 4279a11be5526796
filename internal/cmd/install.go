package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Install registers the bridge as a system service that starts on boot.
type Install struct {
	Supervised bool     `help:"Run the bridge under the supervise command"`
	Args       []string `arg:"" optional:"" passthrough:"" help:"Arguments for the bridge command"`
}

// Run is called by Kong when the install command is executed.
func (i *Install) Run(logger *slog.Logger) error {
	return install(i.serviceArgs(), logger)
}

func (i *Install) serviceArgs() []string {
	if i.Supervised {
		return append([]string{"supervise", "--"}, i.Args...)
	}
	return append([]string{"bridge"}, i.Args...)
}

// Uninstall removes the service created by Install.
type Uninstall struct{}

// Run is called by Kong when the uninstall command is executed.
func (u *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return exe, nil
}
