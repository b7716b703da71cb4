package main

import (
	"flag"
	"strings"

	"github.com/lokeshkvn/cpachecker/analysis/cpa"
	"github.com/lokeshkvn/cpachecker/analysis/lock"
	"github.com/lokeshkvn/cpachecker/analysis/lockconf"
	"github.com/lokeshkvn/cpachecker/analysis/lockcpa"
	"github.com/lokeshkvn/cpachecker/pkgutil"
	"github.com/lokeshkvn/cpachecker/utils"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

func main() {
	utils.ParseArgs()
	opts := utils.Opts()

	if flag.NArg() == 0 {
		log.Fatal("expected a package to analyze as the first positional argument")
	}

	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{
		GoPath:       opts.GoPath(),
		ModulePath:   opts.ModulePath(),
		IncludeTests: opts.IncludeTests(),
	}, flag.Arg(0))
	if err != nil {
		log.Fatalf("loading packages failed: %v", err)
	}

	prog := pkgutil.BuildSSA(pkgs)

	var conf *lockconf.Config
	if path := opts.LockConf(); path != "" {
		if conf, err = lockconf.Load(path); err != nil {
			log.Fatalf("loading lock configuration failed: %v", err)
		}
	}

	fn := findFunction(prog, opts.Function())
	if fn == nil {
		log.Fatalf("no function named %q found in the loaded program", opts.Function())
	}

	newWaitlist := cpa.NewPriorityWaitlist
	if opts.Waitlist().Fifo() {
		newWaitlist = cpa.NewFifoWaitlist
	}

	analysis := lockcpa.NewAnalysis(conf, lock.ReduceNormalizeCounters, newWaitlist)

	switch task := opts.Task(); {
	case task.IsCfaToDot():
		g := analysis.Builder.ForFunction(fn)
		path, err := g.ToDotGraph().Render(fn.Name()+"-cfa", opts.OutputFormat())
		if err != nil {
			log.Fatalf("rendering CFA failed: %v", err)
		}
		log.Infof("wrote CFA of %s to %s", fn, path)

	case task.IsLockMetrics():
		analysis.ReportMetrics(fn)

	default:
		reached, err := analysis.Analyze(fn)
		if err != nil {
			log.Fatalf("analysis of %s failed: %v", fn, err)
		}
		analysis.Report(fn, reached)

		if opts.Visualize() {
			path, err := reached.ToDotGraph(fn.String()).Render(fn.Name()+"-arg", opts.OutputFormat())
			if err != nil {
				log.Fatalf("rendering reachability graph failed: %v", err)
			}
			log.Infof("wrote reachability graph of %s to %s", fn, path)
		}
	}
}

// findFunction resolves the target function. Simple names are looked up in
// the main packages first and then matched against the trailing part of
// every function's qualified name.
func findFunction(prog *ssa.Program, name string) *ssa.Function {
	for _, main := range ssautil.MainPackages(prog.AllPackages()) {
		if fn := main.Func(name); fn != nil {
			return fn
		}
	}

	var match *ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.String() == name {
			return fn
		}
		if match == nil && len(fn.Blocks) > 0 &&
			(fn.Name() == name || strings.HasSuffix(fn.String(), "."+name)) {
			match = fn
		}
	}
	return match
}
