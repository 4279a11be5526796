package api

import "time"

// ServerConfig represents the API server configuration.
type ServerConfig struct {
	Addr              string        `help:"API server listen address" default:"127.0.0.1:26215" env:"JOYBRIDGE_API_ADDR"`
	Password          string        `help:"API password; when set every connection must authenticate" env:"JOYBRIDGE_API_PASSWORD"`
	RequireAuth       bool          `help:"Require authentication, generating a password in the config directory when none is set" default:"false" env:"JOYBRIDGE_API_REQUIRE_AUTH"`
	ConnectionTimeout time.Duration `help:"Deadline for reading a request and writing its reply" default:"5s" env:"JOYBRIDGE_API_CONNECTION_TIMEOUT"`
	CrashLinger       time.Duration `help:"How long the API keeps serving a crash until its status is read; 0 exits at once" default:"5s" env:"JOYBRIDGE_API_CRASH_LINGER"`
}
