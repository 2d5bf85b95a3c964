package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/internal/config"
	"github.com/signalsfoundry/mesh-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-simulator/internal/observability"
	"github.com/signalsfoundry/mesh-simulator/internal/render"
	sim "github.com/signalsfoundry/mesh-simulator/internal/sim/state"
	"github.com/signalsfoundry/mesh-simulator/timectrl"
)

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, path, err := loadConfig(opts.configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", path), logging.Err(err))
		os.Exit(1)
	}
	opts.apply(cfg)

	if err := run(ctx, cfg, os.Stdout, log); err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
}

// options holds the command-line overrides. Only flags the user actually
// set replace config values.
type options struct {
	configPath string
	nodes      int
	source     int
	seed       uint64
	steps      int
	out        string
	set        map[string]bool
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to a YAML config file (defaults to $"+config.EnvConfigPath+")")
	fs.IntVar(&o.nodes, "nodes", 0, "number of nodes in the mesh")
	fs.IntVar(&o.source, "source", 0, "node whose neighbours and routes are printed")
	fs.Uint64Var(&o.seed, "seed", 0, "random seed; 0 picks one at startup")
	fs.IntVar(&o.steps, "steps", 0, "number of mobility steps to run")
	fs.StringVar(&o.out, "out", "", "directory for graph_<step>.dot files")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

func (o options) apply(cfg *config.Config) {
	if o.set["nodes"] {
		cfg.Nodes = o.nodes
	}
	if o.set["source"] {
		cfg.Source = o.source
	}
	if o.set["seed"] {
		cfg.Seed = o.seed
	}
	if o.set["steps"] {
		cfg.Run.Steps = o.steps
	}
	if o.set["out"] {
		cfg.Run.OutputDir = o.out
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func settingsFor(cfg *config.Config) sim.Settings {
	return sim.Settings{
		Nodes:               cfg.Nodes,
		Generator:           cfg.GeneratorConfig(),
		Mobility:            cfg.Mobility,
		CongestionThreshold: cfg.Routing.CongestionThreshold,
		CongestedAbove:      cfg.Inspection.CongestedAbove,
	}
}

// run generates the mesh, prints its state and then drives the mobility
// loop until the configured number of steps is reached or ctx is done.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer, log logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, log = logging.WithRunLogger(ctx, log)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen for metrics: %w", err)
		}
		srv := serveMetrics(lis, collector, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := []sim.Option{sim.WithMetricsRecorder(collector)}
	if cfg.Seed != 0 {
		opts = append(opts, sim.WithSeed(cfg.Seed))
	}
	state, err := sim.NewNetworkState(settingsFor(cfg), log, opts...)
	if err != nil {
		return err
	}
	log.Info(ctx, "starting simulation",
		logging.Int("nodes", cfg.Nodes),
		logging.Seed(state.Seed()),
		logging.Int("steps", cfg.Run.Steps),
		logging.Bool("accelerated", cfg.Run.Accelerated),
	)

	report, err := state.Generate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Generated %d nodes: %d random links, %d components, %d bridges.\n",
		report.Nodes, report.RandomEdges, report.Components, len(report.Bridges))

	order, err := state.Discover(ctx, cfg.Source)
	if err != nil {
		return err
	}
	if err := render.WriteDiscovery(stdout, cfg.Source, order); err != nil {
		return err
	}
	if err := printStep(ctx, stdout, state, cfg, 0); err != nil {
		return err
	}

	if cfg.Run.Steps == 0 {
		return nil
	}

	tick := cfg.Run.Interval.Duration()
	if tick <= 0 {
		tick = time.Second
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), tick, timectrl.ModeFor(cfg.Run.Accelerated))
	tc.AddListener(func(ctx context.Context, step int, simTime time.Time) error {
		mobility, err := state.Step(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\n[%s]\n", simTime.Format(time.RFC3339))
		if err := render.WriteMobility(stdout, step, mobility); err != nil {
			return err
		}
		return printStep(ctx, stdout, state, cfg, step)
	})

	err = tc.Run(ctx, cfg.Run.Steps)
	if errors.Is(err, context.Canceled) {
		log.Info(ctx, "simulation interrupted", logging.Step(tc.Step()))
		return nil
	}
	if err != nil {
		return err
	}
	log.Info(ctx, "simulation complete", logging.Step(tc.Step()))
	return nil
}

// printStep prints the adjacency matrix, the source's neighbours, its routes
// and routing table, then writes the DOT file for the step.
func printStep(ctx context.Context, w io.Writer, state *sim.NetworkState, cfg *config.Config, step int) error {
	topo := state.Topology()
	if err := render.WriteMatrix(w, topo); err != nil {
		return err
	}

	neighbours, err := state.NeighborsOf(ctx, cfg.Source)
	if err != nil {
		return err
	}
	if err := render.WriteNeighbors(w, neighbours); err != nil {
		return err
	}

	routes, err := state.ComputeRoutes(ctx, cfg.Source)
	if err != nil {
		return err
	}
	if err := render.WriteRoutes(w, cfg.Source, routes.Report()); err != nil {
		return err
	}
	if err := render.WriteRoutingTable(w, cfg.Source, routes.Table()); err != nil {
		return err
	}
	if n := unreachable(routes); n > 0 {
		fmt.Fprintf(w, "%d destinations unreachable below threshold %d.\n", n, routes.Threshold)
	}

	if cfg.Run.OutputDir == "" {
		return nil
	}
	if _, err := render.WriteFile(cfg.Run.OutputDir, step, topo); err != nil {
		return err
	}
	return nil
}

func unreachable(r *core.Routes) int {
	n := 0
	for dest := range r.Distance {
		if !r.Reachable(dest) {
			n++
		}
	}
	return n
}

func serveMetrics(lis net.Listener, collector *observability.SimCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", lis.Addr().String()))
	return srv
}
