// Command mssaview builds and prints the memory SSA (mu/chi/phi) form of Go
// source code.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bsauce/memssa/dom"
	"github.com/bsauce/memssa/mr"
	"github.com/bsauce/memssa/mssa"
	"github.com/bsauce/memssa/ssa/build"
	gossa "golang.org/x/tools/go/ssa"
)

const (
	Usage = `mssaview is a tool for printing the memory SSA form of Go source code.

Usage:

  mssaview [options] file.go [files.go...]

Options:

`
)

var (
	memPar       string
	viewFunc     string
	naiveSSA     bool
	showSSA      bool
	showStats    bool
	cgPath       string
	buildlogPath string
	outPath      string

	out io.Writer
)

func init() {
	flag.StringVar(&memPar, "mempar", "intra-disjoint", "Memory partitioning strategy (distinct|intra-disjoint|inter-disjoint)")
	flag.StringVar(&viewFunc, "fun", "", `Only build and print this function (format: (import/path).FuncName)`)
	flag.BoolVar(&naiveSSA, "naive", false, "Build un-lifted SSA so every local variable is accessed through memory")
	flag.BoolVar(&showSSA, "ssa", false, "Also print the SSA IR of the program")
	flag.BoolVar(&showStats, "stats", false, "Print region and memory SSA statistics")
	flag.StringVar(&cgPath, "cg", "", "Write the callgraph to file in graphviz format")
	flag.StringVar(&buildlogPath, "log", "", "Specify build log file (use '-' for stderr)")
	flag.StringVar(&outPath, "out", "", "Specify output file (default: stdout)")
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, Usage)
		flag.PrintDefaults()
		os.Exit(0)
	}

	strategy, err := mr.ParseStrategy(memPar)
	if err != nil {
		log.Fatal("Cannot parse -mempar: ", err)
	}

	conf := build.FromFiles(flag.Args()).Default()
	if naiveSSA {
		conf = conf.WithMode(gossa.NaiveForm | gossa.BareInits)
	}
	var logFile string
	switch buildlogPath {
	case "":
	case "-":
		conf = conf.WithBuildLog(os.Stderr, log.LstdFlags)
	default:
		f, err := os.Create(buildlogPath)
		if err != nil {
			log.Fatalf("Cannot create log %s: %v", buildlogPath, err)
		}
		defer f.Close()
		conf = conf.WithBuildLog(f, log.LstdFlags)
		logFile = f.Name()
	}

	switch outPath {
	case "":
		out = os.Stdout
	default:
		f, err := os.Create(outPath)
		if err != nil {
			log.Fatalf("Cannot create output file %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	info, err := conf.Build()
	if err != nil {
		log.Fatal("Build failed:", err)
	}

	gen := mr.NewGenerator(info, strategy)
	if err := gen.Generate(); err != nil {
		log.Fatal("Memory region generation failed:", err)
	}

	builder := mssa.NewBuilder(gen)
	if logFile != "" {
		builder.AddLogFiles(logFile)
	}
	defer builder.Release()

	fns := info.Functions()
	if viewFunc != "" {
		fn := info.FindFunc(viewFunc)
		if fn == nil {
			log.Fatalf("Cannot find function %s", viewFunc)
		}
		fns = []*gossa.Function{fn}
	}

	for _, fn := range fns {
		di, err := dom.Compute(fn)
		if err != nil {
			log.Fatalf("Dominance computation failed for %s: %v", fn, err)
		}
		f, err := builder.BuildFunction(fn, di)
		if err != nil {
			log.Fatalf("Memory SSA construction failed for %s: %v", fn, err)
		}
		if _, err := f.WriteTo(out); err != nil {
			log.Fatal("Cannot write memory SSA:", err)
		}
	}

	if showSSA {
		if viewFunc != "" {
			if _, err := info.WriteFunc(out, viewFunc); err != nil {
				log.Fatal("Cannot write SSA:", err)
			}
		} else if _, err := info.WriteTo(out); err != nil {
			log.Fatal("Cannot write SSA:", err)
		}
	}

	if cgPath != "" {
		graph, err := info.BuildCallGraph("pta", false)
		if err != nil {
			log.Fatal("Cannot build callgraph:", err)
		}
		f, err := os.Create(cgPath)
		if err != nil {
			log.Fatalf("Cannot create callgraph file %s: %v", cgPath, err)
		}
		defer f.Close()
		if err := graph.WriteGraphviz(f); err != nil {
			log.Fatal("Cannot write callgraph:", err)
		}
	}

	if showStats {
		writeStats(out, gen, builder)
	}
}

// writeStats prints the region generation and memory SSA construction
// summary.
func writeStats(w io.Writer, gen *mr.Generator, builder *mssa.Builder) {
	stats, timing := builder.Stats(), builder.Timing()
	fmt.Fprintln(w, "****Memory SSA Statistics****")
	fmt.Fprintf(w, "MemPartition   %s\n", gen.Strategy())
	fmt.Fprintf(w, "MemRegions     %d\n", gen.NumRegions())
	fmt.Fprintf(w, "MemObjects     %d\n", gen.NumObjects())
	fmt.Fprintf(w, "LoadMuNum      %d\n", stats.LoadMu)
	fmt.Fprintf(w, "StoreChiNum    %d\n", stats.StoreChi)
	fmt.Fprintf(w, "CallMuNum      %d\n", stats.CallMu)
	fmt.Fprintf(w, "CallChiNum     %d\n", stats.CallChi)
	fmt.Fprintf(w, "FunEntryChiNum %d\n", stats.EntryChi)
	fmt.Fprintf(w, "FunRetMuNum    %d\n", stats.RetMu)
	fmt.Fprintf(w, "PhiNum         %d\n", stats.Phi)
	fmt.Fprintf(w, "GenRegionTime  %v\n", gen.Elapsed())
	fmt.Fprintf(w, "SitesTime      %v\n", timing.Sites)
	fmt.Fprintf(w, "PhiTime        %v\n", timing.Phi)
	fmt.Fprintf(w, "RenameTime     %v\n", timing.Rename)
	fmt.Fprintf(w, "TotalMSSATime  %v\n", timing.Total())
}
