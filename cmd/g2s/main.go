// Command-line harness for g2s datasets: synthetic acquisition benchmarks, read-back of
// saved datasets and a live preview server.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/go2scope/g2s/datastore"
	"github.com/go2scope/g2s/g2s"
	"github.com/go2scope/g2s/server"
	"github.com/go2scope/g2s/storage"

	_ "github.com/go2scope/g2s/storage/badger"
	_ "github.com/go2scope/g2s/storage/bucket"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Storage engine and where it keeps datasets.
	engineName  = flag.String("engine", "badger", "")
	storeDir    = flag.String("dir", ".", "")
	bucketURL   = flag.String("url", "", "")
	compression = flag.String("compression", "", "")

	// Dataset written by the write command.
	datasetName = flag.String("name", "", "")
	channels    = flag.Int("channels", 2, "")
	timePoints  = flag.Int("time", 10, "")
	positions   = flag.Int("positions", 1, "")
	width       = flag.Int("width", 512, "")
	height      = flag.Int("height", 512, "")
	producers   = flag.Int("producers", 1, "")

	// Size of the engine read cache in MB.
	readMB = flag.Int("readmb", server.DefaultReadCacheMB, "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")
)

const helpMessage = `
g2s writes and reads multi-dimensional microscopy datasets

Usage: g2s [options] <command>

      -engine      =string   Storage engine: badger or bucket (default badger).
      -dir         =string   Directory holding badger datasets (default ".").
      -url         =string   Bucket URL for the bucket engine, e.g., file:///data or gs://acq.
      -compression =string   Image compression: none, snappy, lz4 or zstd.
      -name        =string   Dataset name for write (default is a timestamp).
      -channels    =number   Number of channels to write.
      -time        =number   Number of time points to write.
      -positions   =number   Number of stage positions to write.
      -width       =number   Frame width in pixels.
      -height      =number   Frame height in pixels.
      -producers   =number   Number of goroutines writing images.
      -readmb      =number   Size of engine read cache in MB.
      -cpuprofile  =string   Write CPU profile to this file.
      -verbose     (flag)    Run in verbose mode.
  -h, -help        (flag)    Show help message

Commands:

	write                    acquire synthetic 16-bit frames, read them back, report bandwidth
	read    <dataset path>   print every image of a saved dataset
	serve   <config.toml>    serve a saved dataset over HTTP
	engines                  list available storage engines
	version
`

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = func() { fmt.Print(helpMessage) }
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *runVerbose {
		g2s.Verbose = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Capture ctrl+c and other interrupts for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := DoCommand(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		g2s.Shutdown()
		os.Exit(1)
	}
	g2s.Shutdown()
}

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("blank command")
	}
	switch args[0] {
	case "write":
		return DoWrite(ctx)
	case "read":
		if len(args) != 2 {
			return fmt.Errorf("read needs a dataset path")
		}
		return DoRead(ctx, args[1])
	case "serve":
		if len(args) != 2 {
			return fmt.Errorf("serve needs a TOML configuration file")
		}
		return DoServe(ctx, args[1])
	case "engines":
		for _, e := range storage.Engines() {
			fmt.Printf("%-8s %s (%s)\n", e.GetName(), e.GetDescription(), e.GetSemVer())
		}
	case "version", "about":
		fmt.Println(datastore.Versions())
	default:
		return fmt.Errorf("unknown command %q, try 'g2s help'", args[0])
	}
	return nil
}

// storeConfig builds the engine configuration from the command-line flags.
func storeConfig() g2s.StoreConfig {
	sc := g2s.StoreConfig{Config: g2s.NewConfig(), Engine: *engineName}
	switch *engineName {
	case "bucket":
		sc.Set("url", *bucketURL)
	default:
		sc.Set("path", *storeDir)
	}
	if *compression != "" {
		sc.Set("compression", *compression)
	}
	return sc
}

// DoServe serves the dataset named in a TOML configuration until interrupted.
func DoServe(ctx context.Context, configFile string) error {
	c, err := server.LoadConfig(configFile)
	if err != nil {
		return err
	}
	return server.Serve(ctx, c)
}
