// Command weerun parses, rewrites and executes a weewasm module, calling
// its "main" export with any trailing command-line arguments.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/weewasm/weewasm/internal/buffer"
	"github.com/weewasm/weewasm/internal/config"
	"github.com/weewasm/weewasm/internal/disasm"
	"github.com/weewasm/weewasm/internal/ir"
	"github.com/weewasm/weewasm/internal/opcode"
	"github.com/weewasm/weewasm/internal/parser"
	"github.com/weewasm/weewasm/internal/rewrite"
	"github.com/weewasm/weewasm/internal/vm"
	"github.com/weewasm/weewasm/internal/werr"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: weerun [-trace] [-disassemble] <file> [arg...]")
	fmt.Fprintln(os.Stderr, "       weerun -test")
}

func main() {
	trace := flag.Bool("trace", false, "log each pipeline stage and instruction")
	disassemble := flag.Bool("disassemble", false, "print a disassembly of the module before running it")
	test := flag.Bool("test", false, "run the internal smoke test suite and exit")
	flag.Usage = usage
	flag.Parse()

	if *test {
		if !runSmokeTests(os.Stdout) {
			os.Exit(1)
		}
		return
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	os.Exit(run(flag.Arg(0), flag.Args()[1:], *trace, *disassemble))
}

func run(path string, argStrs []string, trace, disassemble bool) int {
	cfg := config.New(trace, disassemble)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	m, err := parser.Parse(data, cfg)
	if err != nil {
		cfg.Logger.Sugar().Debugf("parse error: %s", err)
		fmt.Println("!trap")
		return 1
	}

	if cfg.Disassemble {
		disassembleModule(m)
	}

	buf := buffer.New(m.Bytes)
	for i := m.NumImportedFuncs; i < len(m.Funcs); i++ {
		f := &m.Funcs[i]
		if err := rewrite.Func(buf, &opcode.Table, f.CodeStart, f.CodeEnd, cfg); err != nil {
			cfg.Logger.Sugar().Debugf("rewrite error: %s", err)
			fmt.Println("!trap")
			return 1
		}
	}

	if m.MainFunc < 0 {
		fmt.Println("!trap")
		return 1
	}

	inst, err := ir.NewInstance(m)
	if err != nil {
		cfg.Logger.Sugar().Debugf("link error: %s", err)
		fmt.Println("!trap")
		return 1
	}

	args := make([]ir.Value, len(argStrs))
	for i, s := range argStrs {
		args[i] = parseValue(s)
	}

	machine := vm.New(inst, vm.FreeGasPolicy{}, os.Stdout, cfg)
	results, err := machine.Invoke(uint32(m.MainFunc), args)
	if err != nil {
		cfg.Logger.Sugar().Debugf("trap: %s", err)
		fmt.Println("!trap")
		return 1
	}

	out := ""
	for i, v := range results {
		if i > 0 {
			out += " "
		}
		out += formatValue(v)
	}
	fmt.Println(out)
	return 0
}

func disassembleModule(m *ir.Module) {
	buf := buffer.New(m.Bytes)
	for i := m.NumImportedFuncs; i < len(m.Funcs); i++ {
		f := &m.Funcs[i]
		fmt.Printf("func %d:\n", i)
		buf.Seek(f.CodeStart)
		for buf.Pos() < f.CodeEnd {
			if _, err := disasm.Step(buf, &opcode.Table, werr.PhaseParse, os.Stdout, true); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}
		}
	}
}
