package main

import "github.com/urfave/cli"

var (
	filePathPlaceholder = "[path]"

	// configFile defines a flag for the path to the TOML configuration file
	configFile = cli.StringFlag{
		Name: "config",
		Usage: "The `" + filePathPlaceholder + "` for the TOML configuration file. Values in the file are " +
			"overridden by command flags.",
	}
	// logLevel defines the zap level used for diagnostics written to stderr
	logLevel = cli.StringFlag{
		Name:  "log-level",
		Usage: "Logger level: debug, info, warn or error",
	}

	formatFlag = cli.StringFlag{
		Name:  "format",
		Usage: "Input format, yaml or json. JSON input may hold several values back to back.",
		Value: formatYAML,
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "The `" + filePathPlaceholder + "` to write to instead of stdout",
	}
	hexFlag = cli.BoolFlag{
		Name:  "hex",
		Usage: "Write output as hex text",
	}
	frameFlag = cli.BoolFlag{
		Name:  "frame",
		Usage: "Wrap the encoded bytes in a checked compactwire frame",
	}
	zstdFlag = cli.BoolFlag{
		Name:  "zstd",
		Usage: "Compress the framed body with zstd (implies --frame)",
	}
	// memProfile writes a heap profile after encoding
	memProfile = cli.StringFlag{
		Name:  "memprofile",
		Usage: "The `" + filePathPlaceholder + "` for a heap profile written after encoding",
	}
)
