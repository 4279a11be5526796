//go:build !linux

package cmd

import (
	"fmt"
	"log/slog"
	"runtime"
)

func install(_ []string, _ *slog.Logger) error {
	return fmt.Errorf("service install is not supported on %s", runtime.GOOS)
}

func uninstall(_ *slog.Logger) error {
	return fmt.Errorf("service uninstall is not supported on %s", runtime.GOOS)
}
