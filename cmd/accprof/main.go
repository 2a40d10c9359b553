// Command accprof encodes a fixed record in a loop and writes heap and CPU
// profiles, for use with go tool pprof.
package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/rawbytedev/accpack"
)

var (
	iterations = cli.IntFlag{
		Name:  "iterations",
		Usage: "Number of encode calls",
		Value: 10000,
	}
	memProfile = cli.StringFlag{
		Name:  "memprofile",
		Usage: "Heap profile output",
		Value: "mem.prof",
	}
	cpuProfile = cli.StringFlag{
		Name:  "cpuprofile",
		Usage: "CPU profile output, empty to skip",
	}
	reuse = cli.BoolFlag{
		Name:  "reuse",
		Usage: "Reuse one Encoder instead of the package-level Marshal",
	}
)

type record struct {
	Val      []string
	Mod      []int8
	Integers []int16
	Float3   []float32
	Float6   []float64
}

func main() {
	app := cli.NewApp()
	app.Name = "accprof"
	app.Usage = "Profile accpack encoding"
	app.Flags = []cli.Flag{iterations, memProfile, cpuProfile, reuse}
	app.Action = profile

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func profile(c *cli.Context) error {
	if path := c.String(cpuProfile.Name); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "cannot create cpu profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return errors.Wrap(err, "cannot start cpu profile")
		}
		defer pprof.StopCPUProfile()
	}

	runtime.MemProfileRate = 1
	total, err := run(c.Int(iterations.Name), c.Bool(reuse.Name))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "encoded %d bytes\n", total)

	f, err := os.Create(c.String(memProfile.Name))
	if err != nil {
		return errors.Wrap(err, "cannot create heap profile")
	}
	defer f.Close()
	return errors.Wrap(pprof.WriteHeapProfile(f), "cannot write heap profile")
}

// run encodes the fixture n times and returns the total output size.
func run(n int, reuse bool) (int, error) {
	z := record{Val: []string{"azerty", "hello", "world", "random"},
		Mod: []int8{12, 10, 13, 0}, Integers: []int16{100, 250, 300},
		Float3: []float32{12.13, 16.23, 75.1}, Float6: []float64{100.5, 165.63, 153.5}}

	enc := accpack.NewEncoder(accpack.Options{BaseSize: 512})
	total := 0
	for i := 0; i < n; i++ {
		var data []byte
		var err error
		if reuse {
			data, err = enc.Marshal(z)
		} else {
			data, err = accpack.Marshal(z)
		}
		if err != nil {
			return 0, errors.Wrapf(err, "iteration %d", i)
		}
		total += len(data)
	}
	return total, nil
}
