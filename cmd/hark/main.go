package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericsun2/hark-lang/compiler"
	"github.com/ericsun2/hark-lang/config"
	"github.com/ericsun2/hark-lang/controller"
	"github.com/ericsun2/hark-lang/controller/memory"
	"github.com/ericsun2/hark-lang/controller/remote"
	"github.com/ericsun2/hark-lang/executor"
	"github.com/ericsun2/hark-lang/foreign"
	"github.com/ericsun2/hark-lang/foreign/stdhost"
	"github.com/ericsun2/hark-lang/scenario"
	"github.com/ericsun2/hark-lang/scheduler"
	"github.com/ericsun2/hark-lang/trace"
	"github.com/ericsun2/hark-lang/value"
)

// argList collects repeated -arg flags in order, the way the teacher's
// moo_client collects repeated -cmd flags.
type argList []string

func (a *argList) String() string { return strings.Join(*a, ", ") }
func (a *argList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func main() {
	programPath := flag.String("program", "", "YAML file describing the program to run (imports + functions)")
	entry := flag.String("entry", "main", "entry function to spawn")
	configPath := flag.String("config", "", "YAML config file (workers, step budget, lease timeout); defaults if omitted")
	useRemote := flag.Bool("remote", false, "use the simulated remote controller instead of the in-memory one")
	checkpointPath := flag.String("checkpoint", "", "checkpoint file path (remote controller only)")
	restore := flag.Bool("restore", false, "restore controller state from -checkpoint before running")

	traceEnabled := flag.Bool("trace", false, "enable execution tracing")
	traceFilter := flag.String("trace-filter", "", "trace filter pattern (glob, comma-separated, e.g. 'main,helper_*')")

	var args argList
	flag.Var(&args, "arg", "argument to pass to entry, repeatable in order (e.g. -arg 42 -arg true -arg hello)")
	flag.Parse()

	if *programPath == "" {
		log.Fatal("missing -program")
	}

	if *traceEnabled {
		var filters []string
		if *traceFilter != "" {
			filters = strings.Split(*traceFilter, ",")
			for i := range filters {
				filters[i] = strings.TrimSpace(filters[i])
			}
		}
		trace.Init(true, filters, os.Stderr)
		log.Printf("tracing enabled (filters: %v)", filters)
	} else {
		trace.Init(false, nil, nil)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	spec, err := scenario.LoadProgramFile(*programPath)
	if err != nil {
		log.Fatalf("loading program: %v", err)
	}
	prog, err := scenario.BuildProgram(spec)
	if err != nil {
		log.Fatalf("building program: %v", err)
	}
	model, err := compiler.Compile(prog)
	if err != nil {
		log.Fatalf("compiling program: %v", err)
	}

	callArgs, err := parseArgs(args)
	if err != nil {
		log.Fatalf("parsing -arg values: %v", err)
	}

	ctx := context.Background()

	var ctrl controller.Controller
	var remoteCtrl *remote.Controller
	if *useRemote {
		remoteCtrl = remote.New()
		ctrl = remoteCtrl
	} else {
		ctrl = memory.New()
	}

	if *restore {
		if remoteCtrl == nil {
			log.Fatal("-restore requires -remote")
		}
		if *checkpointPath == "" {
			log.Fatal("-restore requires -checkpoint")
		}
		if err := remote.Restore(*checkpointPath, remoteCtrl); err != nil {
			log.Fatalf("restoring checkpoint: %v", err)
		}
		log.Printf("restored controller state from %s", *checkpointPath)
	} else {
		if err := ctrl.SeedCode(ctx, model); err != nil {
			log.Fatalf("seeding code: %v", err)
		}
	}

	var checkpointMgr *remote.CheckpointManager
	if remoteCtrl != nil && *checkpointPath != "" {
		checkpointMgr = remote.NewCheckpointManager(*checkpointPath, remoteCtrl, cfg.PollInterval()*100)
		checkpointMgr.Start()
		defer func() {
			if err := checkpointMgr.Checkpoint(remote.DumpShutdown); err != nil {
				log.Printf("final checkpoint failed: %v", err)
			}
			checkpointMgr.Stop()
		}()
	}

	registry := foreign.NewRegistry()
	stdhost.Register(registry)

	invokers := make([]scheduler.Invoker, cfg.Workers)
	for i := range invokers {
		ex := executor.New(ctrl, registry)
		ex.LeaseTimeout = cfg.LeaseTimeout()
		ex.StepBudget = cfg.StepBudget
		invokers[i] = &scheduler.LocalInvoker{Executor: ex}
	}
	if cfg.Remote != nil {
		for i := 0; i < cfg.Remote.Workers; i++ {
			ex := executor.New(ctrl, registry)
			ex.LeaseTimeout = cfg.LeaseTimeout()
			ex.StepBudget = cfg.StepBudget
			invokers = append(invokers, scheduler.NewSimulatedRemoteInvoker(ex, cfg.Remote.Latency(), cfg.Remote.DropRate, cfg.Remote.Seed+int64(i)))
		}
	}

	sched := scheduler.New(ctrl, invokers)
	sched.PollInterval = cfg.PollInterval()
	sched.Start()
	defer sched.Stop()

	_, futureID, err := sched.Spawn(ctx, *entry, callArgs)
	if err != nil {
		log.Fatalf("spawning %s: %v", *entry, err)
	}

	result, err := sched.Await(ctx, futureID)
	if err != nil {
		log.Fatalf("awaiting result: %v", err)
	}

	if ev, ok := result.(value.ErrorValue); ok {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", ev.Code, ev.Reason)
		os.Exit(1)
	}
	fmt.Println(result.String())
}

// parseArgs converts the CLI's flat -arg strings into Hark values. An
// argument parses as an Integer or Float if it looks numeric, as a Boolean
// for the literal spellings "true"/"false", as Null for "null", and as a
// Str otherwise — the same grammar scenario fixtures use for ValueSpec,
// applied here without the YAML wrapper.
func parseArgs(args []string) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, a := range args {
		switch a {
		case "true":
			out[i] = value.NewBool(true)
			continue
		case "false":
			out[i] = value.NewBool(false)
			continue
		case "null":
			out[i] = value.Null{}
			continue
		}
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			out[i] = value.NewInt(n)
			continue
		}
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			out[i] = value.NewFloat(f)
			continue
		}
		out[i] = value.NewString(a)
	}
	return out, nil
}
