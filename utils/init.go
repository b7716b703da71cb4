package utils

import (
	"flag"
	"fmt"
	"log"
	"strings"
)

type options struct {
	function     string
	outputFormat string
	gopath       string
	modulePath   string
	lockConf     string
	task         string
	waitlist     string
	noColorize   bool
	verbose      bool
	includeTests bool
	visualize    bool
}

const (
	_ANALYZE = iota
	_CFA_TO_DOT
	_LOCK_METRICS
)

const (
	_WAITLIST_PRIORITY = iota
	_WAITLIST_FIFO
)

// CanColorize disables a colorization function when -no-colorize is set.
func CanColorize(col func(...interface{}) string) func(...interface{}) string {
	if opts.noColorize {
		return func(is ...interface{}) string {
			return fmt.Sprintf(strings.Repeat("%s", len(is)), is...)
		}
	}
	return col
}

var task = []struct{ flag, explanation string }{{
	"analyze",
	"Run the lock-state analysis to fixpoint and report the reached lock states",
}, {
	"cfa-to-dot",
	"Export the control-flow automaton, with classified lock events, as a graph",
}, {
	"lock-metrics",
	"Collect static metrics on lock identifiers and lock operation sites",
}}

var waitlists = []struct{ flag, explanation string }{{
	"priority",
	"States holding more locks are explored first",
}, {
	"fifo",
	"States are explored in discovery order",
}}

var opts = &options{}

type optInterface struct{}

type taskInterface struct{}

type waitlistInterface struct{}

func Opts() optInterface {
	return optInterface{}
}

func (optInterface) NoColorize() bool {
	return opts.noColorize
}

func (optInterface) Function() string {
	return opts.function
}
func (optInterface) OutputFormat() string {
	return opts.outputFormat
}
func (optInterface) GoPath() string {
	return opts.gopath
}
func (optInterface) ModulePath() string {
	return opts.modulePath
}
func (optInterface) LockConf() string {
	return opts.lockConf
}
func (optInterface) IncludeTests() bool {
	return opts.includeTests
}
func (optInterface) Verbose() bool {
	return opts.verbose
}
func (optInterface) Visualize() bool {
	return opts.visualize
}

func (optInterface) Task() taskInterface {
	return taskInterface{}
}
func (taskInterface) IsAnalyze() bool {
	return opts.task == task[_ANALYZE].flag
}
func (taskInterface) IsCfaToDot() bool {
	return opts.task == task[_CFA_TO_DOT].flag
}
func (taskInterface) IsLockMetrics() bool {
	return opts.task == task[_LOCK_METRICS].flag
}

func (optInterface) Waitlist() waitlistInterface {
	return waitlistInterface{}
}
func (waitlistInterface) Priority() bool {
	return opts.waitlist == waitlists[_WAITLIST_PRIORITY].flag
}
func (waitlistInterface) Fifo() bool {
	return opts.waitlist == waitlists[_WAITLIST_FIFO].flag
}

func (optInterface) OnVerbose(do func()) {
	if Opts().Verbose() {
		do()
	}
}

func init() {
	taskFlag := "\n"
	for _, task := range task {
		taskFlag += task.flag + " -- " + task.explanation + "\n"
	}
	taskFlag += "\n"
	waitlistFlag := "\n"
	for _, wl := range waitlists {
		waitlistFlag += wl.flag + " -- " + wl.explanation + "\n"
	}
	waitlistFlag += "\n"

	flag.StringVar(&(opts.function), "fun", "main", "target a specific function w. r. t. the given task.\n"+
		"- Function names need not be fully qualified w.r.t. package name. If a simple name is provided, "+
		"the framework will search for a function matching that name in the main package.\n")
	flag.StringVar(&(opts.outputFormat), "format", "svg", "output file format [svg | png | jpg | ...]")
	flag.StringVar(&(opts.gopath), "gopath", "testdata", "specify GOPATH to be used for packages.Load")
	flag.StringVar(&(opts.modulePath), "modulepath", "", `specify a path to a directory containing a Go module.
- If provided this will make our code loading tools (that piggyback on Go's tools) run
in "module-aware" mode (GO111MODULE=on).`)
	flag.StringVar(&(opts.lockConf), "lockconf", "", "path to a YAML file with annotated lock functions")
	flag.StringVar(&(opts.task), "task", task[_ANALYZE].flag, "Set the task to do during execution. Options:"+taskFlag)
	flag.StringVar(&(opts.waitlist), "waitlist", waitlists[_WAITLIST_PRIORITY].flag, "Set the waitlist exploration order. Options:"+waitlistFlag)
	flag.BoolVar(&(opts.noColorize), "no-colorize", false, "Disable pretty printer colorization")
	flag.BoolVar(&(opts.verbose), "verbose", false, "enable verbose output")
	flag.BoolVar(&(opts.includeTests), "include-tests", false, "include main package test files in the analysis.")
	flag.BoolVar(&(opts.visualize), "visualize", false, "export the abstract reachability graph after analysis")

	// Set up logging
	log.SetFlags(log.Ltime | log.Lshortfile)
}

func ParseArgs() {
	// Calling flag.Parse in init messes up unit tests.
	flag.Parse()

	validTask := false
	for _, task := range task {
		if task.flag == opts.task {
			validTask = true
			break
		}
	}

	if !validTask {
		log.Fatalf("Value \"%s\" is not valid for -task", opts.task)
	}

	validWaitlist := false
	for _, wl := range waitlists {
		if wl.flag == opts.waitlist {
			validWaitlist = true
			break
		}
	}

	if !validWaitlist {
		log.Fatalf("Value \"%s\" is not valid for -waitlist", opts.waitlist)
	}

	// Graph exports embed state strings in dot labels; ANSI color codes
	// would corrupt them.
	if Opts().Task().IsCfaToDot() || opts.visualize {
		opts.noColorize = true
	}
}
