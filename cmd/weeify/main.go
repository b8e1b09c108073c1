// Command weeify pads a binary module's branch labels and body lengths
// to fixed widths so internal/rewrite can later patch pc-relative jumps
// into them in place.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/weeify"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: weeify [-trace] -o <out> <in>")
}

func main() {
	trace := flag.Bool("trace", false, "log each section transform")
	out := flag.String("o", "", "output file path")
	flag.Usage = usage
	flag.Parse()

	if *out == "" || flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	cfg := config.New(*trace, false)

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	woven, err := weeify.Transform(data, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, woven, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
