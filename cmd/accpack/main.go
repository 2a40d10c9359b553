package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/rawbytedev/accpack"
	"github.com/rawbytedev/accpack/config"
	"github.com/rawbytedev/accpack/pkg/compactwire"
	"github.com/rawbytedev/accpack/pkg/source"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

var appVersion = "v0.1.0"

func main() {
	app := newApp()
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// env is the state shared by every command, set up in Before.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func newApp() *cli.App {
	e := &env{}
	app := cli.NewApp()
	app.Name = "accpack"
	app.Version = fmt.Sprintf("%s/%s/%s-%s", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	app.Usage = "Encode YAML or JSON documents as MessagePack"
	app.Flags = []cli.Flag{configFile, logLevel}
	app.Before = func(c *cli.Context) error {
		return e.setup(c)
	}
	app.After = func(c *cli.Context) error {
		if e.log != nil {
			_ = e.log.Sync()
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "encode",
			Usage:     "Encode every document of the input and write the concatenated bytes",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{formatFlag, outFlag, hexFlag, frameFlag, zstdFlag, memProfile},
			Action:    e.encodeCmd,
		},
		{
			Name:      "inspect",
			Usage:     "Dump the value tree parsed from the input",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{formatFlag},
			Action:    e.inspectCmd,
		},
		{
			Name:      "unframe",
			Usage:     "Validate a compactwire frame and write its payload",
			ArgsUsage: "[file]",
			Flags:     []cli.Flag{outFlag, hexFlag},
			Action:    e.unframeCmd,
		},
	}
	return app
}

func (e *env) setup(c *cli.Context) error {
	e.cfg = config.Default()
	if path := c.GlobalString(configFile.Name); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return errors.Wrap(err, "cannot load configuration")
		}
		e.cfg = cfg
	}
	if lvl := c.GlobalString(logLevel.Name); lvl != "" {
		e.cfg.Log.Level = lvl
	}
	log, err := e.cfg.Log.Logger()
	if err != nil {
		return errors.Wrap(err, "cannot create logger")
	}
	e.log = log
	return nil
}

func (e *env) encodeCmd(c *cli.Context) error {
	out := e.cfg.Output
	if c.Bool(frameFlag.Name) {
		out.Frame = true
	}
	if c.Bool(zstdFlag.Name) {
		out.Frame, out.Compress = true, true
	}
	if c.Bool(hexFlag.Name) {
		out.Hex = true
	}

	input, err := readInput(c.Args().First())
	if err != nil {
		return err
	}
	values, err := parseInput(input, c.String(formatFlag.Name))
	if err != nil {
		return err
	}
	data, err := encodeValues(values, e.cfg.Encoder.Options(e.log))
	if err != nil {
		return err
	}
	if out.Frame {
		var flags byte
		if out.Compress {
			flags |= compactwire.FlagZstd
		}
		if data, err = compactwire.EncodeFrame(data, flags); err != nil {
			return errors.Wrap(err, "cannot frame output")
		}
	}
	e.log.Info("encoded input",
		zap.Int("documents", len(values)),
		zap.Int("bytes", len(data)),
		zap.Bool("framed", out.Frame))

	if path := c.String(memProfile.Name); path != "" {
		if err := writeHeapProfile(path); err != nil {
			return err
		}
	}
	return writeOutput(c.App.Writer, c.String(outFlag.Name), data, out.Hex)
}

func (e *env) inspectCmd(c *cli.Context) error {
	input, err := readInput(c.Args().First())
	if err != nil {
		return err
	}
	values, err := parseInput(input, c.String(formatFlag.Name))
	if err != nil {
		return err
	}
	cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	for _, v := range values {
		cs.Fdump(c.App.Writer, v)
	}
	return nil
}

func (e *env) unframeCmd(c *cli.Context) error {
	input, err := readInput(c.Args().First())
	if err != nil {
		return err
	}
	payload, flags, err := compactwire.DecodeFrame(input)
	if err != nil {
		return errors.Wrap(err, "invalid frame")
	}
	e.log.Debug("frame decoded", zap.Int("payload", len(payload)), zap.Uint8("flags", flags))
	return writeOutput(c.App.Writer, c.String(outFlag.Name), payload, c.Bool(hexFlag.Name))
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, errors.Wrap(err, "cannot read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	return data, nil
}

// parseInput turns the input into one value per document. JSON input is
// split into top-level values first so that a stream of objects works.
func parseInput(input []byte, format string) ([]accpack.Value, error) {
	switch format {
	case "", formatYAML:
		values, err := source.ParseBytes(input)
		return values, errors.Wrap(err, "cannot parse yaml")
	case formatJSON:
		var values []accpack.Value
		dec := json.NewDecoder(bytes.NewReader(input))
		for {
			var raw json.RawMessage
			err := dec.Decode(&raw)
			if err == io.EOF {
				return values, nil
			}
			if err != nil {
				return nil, errors.Wrapf(err, "cannot parse json value %d", len(values))
			}
			doc, err := source.ParseBytes(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "cannot convert json value %d", len(values))
			}
			values = append(values, doc...)
		}
	default:
		return nil, errors.Errorf("unknown format %q", format)
	}
}

func encodeValues(values []accpack.Value, opts accpack.Options) ([]byte, error) {
	enc := accpack.NewEncoder(opts)
	var out []byte
	for i, v := range values {
		data, err := enc.Encode(v)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot encode document %d", i)
		}
		out = append(out, data...)
	}
	return out, nil
}

func writeOutput(stdout io.Writer, path string, data []byte, asHex bool) error {
	if asHex {
		data = []byte(hex.EncodeToString(data) + "\n")
	}
	if path == "" {
		_, err := stdout.Write(data)
		return errors.Wrap(err, "cannot write output")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "cannot write %s", path)
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create heap profile")
	}
	defer f.Close()
	runtime.GC()
	return errors.Wrap(pprof.WriteHeapProfile(f), "cannot write heap profile")
}
