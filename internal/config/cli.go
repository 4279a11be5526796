// Package config defines the command line of the joybridge binary.
package config

import (
	"github.com/alecthomas/kong"

	"github.com/sanjay900/joybridge/internal/cmd"
	"github.com/sanjay900/joybridge/internal/log"
)

// CLI is the root command tree parsed by Kong.
type CLI struct {
	Config  string           `help:"Path to a JSON, YAML or TOML config file" type:"path" env:"JOYBRIDGE_CONFIG"`
	Log     log.Config       `embed:"" prefix:"log."`
	Version kong.VersionFlag `help:"Print the version and exit"`

	Bridge    cmd.Bridge        `cmd:"" help:"Run the report bridge"`
	Supervise cmd.Supervise     `cmd:"" help:"Run the bridge as a child process and restart it on crash"`
	Feed      cmd.Feed          `cmd:"" help:"Stream test input to a running bridge"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
	Install   cmd.Install       `cmd:"" help:"Install the bridge as a system service"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the system service"`
}
