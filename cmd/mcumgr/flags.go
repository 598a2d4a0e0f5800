package main

import (
	"github.com/urfave/cli/v2"
)

// Global flags. Values given here override the config file.
var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Config file (default ~/" + defaultConfigName + " if present)",
	}

	ConnFlag = &cli.StringFlag{
		Name:    "conn",
		Usage:   "Connection: udp:host:port, tcp:host:port or serial:/dev/ttyACM0[,baud=N]",
		EnvVars: []string{"MCUMGR_CONN"},
	}

	MTUFlag = &cli.IntFlag{
		Name:  "mtu",
		Usage: "Largest frame sent to the device (default depends on the transport)",
	}

	FormatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "Body encoding: cbor or json",
	}

	VersionFlag = &cli.IntFlag{
		Name:  "smp-version",
		Usage: "SMP protocol version: 0 (legacy) or 1",
	}

	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Wait for each response at most this long",
	}

	CapacityFlag = &cli.IntFlag{
		Name:  "capacity",
		Usage: "Transfer requests kept in flight",
	}

	// No -v alias: the built-in --version flag owns it.
	VerboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Log frames and transfer details",
	}

	LogJSONFlag = &cli.BoolFlag{
		Name:  "log-json",
		Usage: "Write logs as JSON lines",
	}
)

// GlobalFlags returns the flags shared by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		ConnFlag,
		MTUFlag,
		FormatFlag,
		VersionFlag,
		TimeoutFlag,
		CapacityFlag,
		VerboseFlag,
		LogJSONFlag,
	}
}

// applyFlags copies the flags set on the command line over cfg.
func applyFlags(c *cli.Context, cfg *Config) {
	if c.IsSet(ConnFlag.Name) {
		cfg.Conn = c.String(ConnFlag.Name)
	}
	if c.IsSet(MTUFlag.Name) {
		cfg.MTU = c.Int(MTUFlag.Name)
	}
	if c.IsSet(FormatFlag.Name) {
		cfg.Format = c.String(FormatFlag.Name)
	}
	if c.IsSet(VersionFlag.Name) {
		cfg.Version = c.Int(VersionFlag.Name)
	}
	if c.IsSet(TimeoutFlag.Name) {
		cfg.Timeout = Duration{c.Duration(TimeoutFlag.Name)}
	}
	if c.IsSet(CapacityFlag.Name) {
		cfg.Capacity = c.Int(CapacityFlag.Name)
	}
	if c.IsSet(VerboseFlag.Name) {
		cfg.Verbose = c.Bool(VerboseFlag.Name)
	}
	if c.IsSet(LogJSONFlag.Name) {
		cfg.LogJSON = c.Bool(LogJSONFlag.Name)
	}
}
