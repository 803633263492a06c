// Command vdifsg-cat drains a read plan over a set of SG shards and
// reports the frame count and header timestamps of each super-block
// it reconstructs. It is a thin diagnostic wrapper; the engine itself
// remains importable as a library.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	vdifsg "github.com/cfa-haystack/vdifsg"
	"github.com/cfa-haystack/vdifsg/internal/logging"
	"github.com/cfa-haystack/vdifsg/plan"
	"github.com/cfa-haystack/vdifsg/vdifheader"
)

func main() {
	var (
		template = pflag.StringP("template", "t", "", "path template with two %d verbs (module, disk) and one %s verb")
		pattern  = pflag.StringP("pattern", "p", "", "filename substituted for the template's %s verb")
		modules  = pflag.IntSlice("modules", nil, "module identifiers to fan out over")
		disks    = pflag.IntSlice("disks", nil, "disk identifiers to fan out over")
		block    = pflag.Int64("block", -1, "if >= 0, dump this single block index instead of draining the stream")
		verbose  = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	if *template == "" || len(*modules) == 0 || len(*disks) == 0 {
		fmt.Fprintln(os.Stderr, "usage: vdifsg-cat --template T --pattern P --modules 0,1 --disks 0,1")
		os.Exit(2)
	}

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.Config{Level: level, Format: "text", Output: os.Stderr})

	metrics := vdifsg.NewMetrics()
	ctx := context.Background()
	cfg := plan.Config{
		Pattern: *pattern, Template: *template, Modules: *modules, Disks: *disks,
		Logger:   logger,
		Observer: vdifsg.NewMetricsObserver(metrics),
	}

	rp, n, err := plan.NewReadPlan(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdifsg-cat: %v\n", err)
		os.Exit(1)
	}
	defer rp.Close()
	logger.Info("opened read plan", "shards", n)

	if *block >= 0 {
		buf, frames, err := rp.ReadBlockAt(ctx, *block)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vdifsg-cat: %v\n", err)
			os.Exit(1)
		}
		report(*block, buf, frames)
		return
	}

	superBlock := int64(0)
	for {
		buf, frames, err := rp.ReadNextBlock(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vdifsg-cat: %v\n", err)
			os.Exit(1)
		}
		if frames == 0 {
			allDead := true
			for _, s := range rp.Shards() {
				if !s.Dead() {
					allDead = false
					break
				}
			}
			if allDead {
				break
			}
			continue
		}
		report(superBlock, buf, frames)
		superBlock++
	}

	metrics.Stop()
	snap := metrics.Snapshot()
	fmt.Printf("drained %d super-blocks, %d block reads, %d retained buffers\n",
		superBlock, snap.BlockReads, snap.RetainedShards)
}

func report(block int64, buf []byte, frames int) {
	if frames == 0 || len(buf) < vdifheader.Size {
		fmt.Printf("super-block %d: %d frames\n", block, frames)
		return
	}
	first := vdifheader.Parse(buf)
	fmt.Printf("super-block %d: %d frames, first=(secs=%d, frame=%d)\n", block, frames, first.SecsInRe, first.DFNumInSec)
}
