// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/klauspost/cpuid"

	nl "github.com/mlnoga/fuselight/internal"
	"github.com/mlnoga/fuselight/internal/config"
	"github.com/mlnoga/fuselight/internal/ops"
	"github.com/mlnoga/fuselight/internal/ops/fuse"
	"github.com/mlnoga/fuselight/internal/rest"
	"github.com/mlnoga/fuselight/internal/weights"
)

const version = "0.1.0"

var defaults = config.DefaultConfig()

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var configFile = flag.String("config", "", "load settings from YAML `file`. Flags given explicitly take precedence")
var saveConfig = flag.String("saveConfig", "", "save the effective settings as YAML to `file`")

var out = flag.String("out", defaults.Output.Out, "save fused output to `file`. Format by suffix: .fits, .tiff, .png, .jpg or .hdr")
var jpg = flag.String("jpg", defaults.Output.Jpg, "save 8bit preview of output as JPEG to `file`. `%auto` replaces suffix of output file with .jpg")
var hdr = flag.String("hdr", defaults.Output.Hdr, "save unclipped Radiance HDR version of output to `file`")
var quality = flag.Int("quality", defaults.Output.Quality, "JPEG quality in [1,100]")
var logFile = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var contrast = flag.Float64("contrast", float64(defaults.Weights.Contrast), "exponent of the contrast measure in the weight map, 0=ignore contrast")
var saturation = flag.Float64("saturation", float64(defaults.Weights.Saturation), "exponent of the saturation measure in the weight map, 0=ignore saturation")
var exposedness = flag.Float64("exposedness", float64(defaults.Weights.Exposedness), "exponent of the well-exposedness measure in the weight map, 0=ignore exposedness")
var sigma = flag.Float64("sigma", float64(defaults.Weights.Sigma), "width of the Gaussian around mid-gray 0.5 for the well-exposedness measure")
var levels = flag.Int("levels", defaults.Levels, "maximum number of pyramid levels, 0=automatic from image size")

var stage = flag.String("stage", defaults.Debug.Stage.String(), "intermediate written by the weights command: grayscale, laplacian, contrast, saturation, exposedness or weight")
var weightsOut = flag.String("weightsOut", defaults.Debug.WeightsOut, "save intermediates of the weights command with given filename pattern, e.g. `weights%d.fits`")
var heat = flag.Bool("heat", defaults.Debug.Heatmap, "weights command: also save false-color heat maps of the intermediates as PNG")

var maxThreads = flag.Int("maxThreads", defaults.Processing.MaxThreads, "maximum number of images processed in parallel")

var addr = flag.String("addr", ":8080", "serve: listen on given `address`")
var chroot = flag.String("chroot", "", "serve: change filesystem root to given `directory` before serving (requires root)")
var setuid = flag.Int("setuid", -1, "serve: change user ID to given value before serving, -1=keep")

func main() {
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `Fuselight Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (fuse|weights|stats|serve|legal|version|help) (img0.tiff ... imgn.tiff)

Commands:
  fuse    Fuse a stack of differently exposed images into one
  weights Save intermediates of the weight map estimation for each input image
  stats   Show input image statistics and exposure times
  serve   Serve the web interface and REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := effectiveConfig()
	if err != nil {
		fmt.Fprintf(os.Stdout, "Error: %s\n", err.Error())
		os.Exit(-1)
	}

	// Initialize logging to file in addition to stdout, if selected
	*logFile = autoName(*logFile, cfg.Output.Out, ".log")
	if *logFile != "" {
		if err := nl.LogAlsoToFile(*logFile); err != nil {
			nl.LogFatalf("Unable to open logfile '%s'\n", *logFile)
		}
	}
	defer nl.LogClose()
	logWriter := nl.LogWriter()

	// Also auto-select JPEG output target
	cfg.Output.Jpg = autoName(cfg.Output.Jpg, cfg.Output.Out, ".jpg")

	if *saveConfig != "" {
		if err := config.SaveConfig(cfg, *saveConfig); err != nil {
			nl.LogFatal("Could not save config: ", err)
		}
		fmt.Fprintf(logWriter, "Saved settings to %s\n", *saveConfig)
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	c := ops.NewContext(logWriter)
	if cfg.Processing.MaxThreads > 0 {
		c.MaxThreads = cfg.Processing.MaxThreads
	}
	if args[0] == "fuse" || args[0] == "weights" || args[0] == "stats" || args[0] == "serve" {
		fmt.Fprintf(logWriter, "Running on %s with %d logical cores, AVX2 %v, %d MB memory of which %d MB for fusion, %d threads\n",
			cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2(), c.MemoryMB, c.FuseMemoryMB, c.MaxThreads)
	}

	// run actions
	switch args[0] {
	case "fuse":
		err = cmdFuse(args[1:], cfg, c)

	case "weights":
		err = cmdWeights(args[1:], cfg, c)

	case "stats":
		err = run(ops.NewOpSequence(ops.NewOpLoadMany(args[1:])), c)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid, logWriter); err == nil {
			err = rest.Serve(*addr)
		}

	case "legal":
		fmt.Fprint(logWriter, legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	fmt.Fprintf(logWriter, "\nDone after %v\n", time.Since(start))

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		nl.LogClose()
		os.Exit(-1)
	}
}

// Loads the optional configuration file, then applies all flags given explicitly on the command line
func effectiveConfig() (cfg *config.Config, err error) {
	cfg = config.DefaultConfig()
	if *configFile != "" {
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.Out = *out
		case "jpg":
			cfg.Output.Jpg = *jpg
		case "hdr":
			cfg.Output.Hdr = *hdr
		case "quality":
			cfg.Output.Quality = *quality
		case "contrast":
			cfg.Weights.Contrast = float32(*contrast)
		case "saturation":
			cfg.Weights.Saturation = float32(*saturation)
		case "exposedness":
			cfg.Weights.Exposedness = float32(*exposedness)
		case "sigma":
			cfg.Weights.Sigma = float32(*sigma)
		case "levels":
			cfg.Levels = *levels
		case "stage":
			if s, perr := weights.ParseStage(*stage); perr != nil {
				err = perr
			} else {
				cfg.Debug.Stage = s
			}
		case "weightsOut":
			cfg.Debug.WeightsOut = *weightsOut
		case "heat":
			cfg.Debug.Heatmap = *heat
		case "maxThreads":
			cfg.Processing.MaxThreads = *maxThreads
		}
	})
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Resolves %auto by replacing the suffix of the output file name with the given one
func autoName(name, out, suffix string) string {
	if name != "%auto" {
		return name
	}
	if out == "" {
		return ""
	}
	base := strings.TrimSuffix(out, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base)) + suffix
}

// Prints the operator settings, then materializes all outputs of the operator
func run(op ops.Operator, c *ops.Context) error {
	if err := printOperator(c.Log, op); err != nil {
		return err
	}
	promises, err := op.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

func printOperator(logWriter io.Writer, op ops.Operator) error {
	m, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "\nRunning with these settings:\n%s\n", string(m))
	return nil
}

func cmdFuse(patterns []string, cfg *config.Config, c *ops.Context) error {
	seq := ops.NewOpSequence(
		ops.NewOpLoadMany(patterns),
		fuse.NewOpFuse(cfg.Weights, cfg.Levels),
	)
	for _, name := range []string{cfg.Output.Out, cfg.Output.Jpg, cfg.Output.Hdr} {
		if name != "" {
			save := ops.NewOpSave(name)
			save.Quality = cfg.Output.Quality
			seq.Append(save)
		}
	}
	return run(seq, c)
}

func cmdWeights(patterns []string, cfg *config.Config, c *ops.Context) error {
	heatmap := ""
	if cfg.Debug.Heatmap {
		heatmap = autoName("%auto", cfg.Debug.WeightsOut, "_heat.png")
	}
	save := ops.NewOpSave(cfg.Debug.WeightsOut)
	save.Quality = cfg.Output.Quality
	seq := ops.NewOpSequence(
		ops.NewOpLoadMany(patterns),
		ops.NewOpForEach(fuse.NewOpWeights(cfg.Weights, cfg.Debug.Stage, heatmap)),
		ops.NewOpForEach(save),
	)
	return run(seq, c)
}
