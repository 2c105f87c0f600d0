package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/comm/wsmesh"
	"github.com/lintang-b-s/hgpart/pkg/config"
	"github.com/lintang-b-s/hgpart/pkg/engine"
	"github.com/lintang-b-s/hgpart/pkg/http"
	"github.com/lintang-b-s/hgpart/pkg/logger"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"github.com/lintang-b-s/hgpart/pkg/vcycle"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// flag name -> config key
var flagKeys = map[string]string{
	"parts":         "parts",
	"procs":         "procs",
	"balance":       "balance",
	"para-runs":     "para_runs",
	"seed":          "seed",
	"debug":         "debug",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"log-output":    "log.output_paths",
	"strategy":      "coarsening.strategy",
	"min-nodes":     "coarsening.min_nodes",
	"visit-order":   "coarsening.vertex_visit_order",
	"seq-runs":      "initial.seq_runs",
	"vcycle":        "vcycle.enabled",
	"transport":     "transport.kind",
	"rank":          "transport.rank",
	"peers":         "transport.peers",
	"output":        "output.partition_file",
	"metrics-addr":  "metrics_addr",
	"approx-refine": "refinement.approx_refine",
	"shuffle":       "vcycle.shuffle_vertices",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := config.New()
	cmd := newRootCommand(ctx, v)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(ctx context.Context, v *viper.Viper) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "hgpart <hypergraph.hgr>",
		Short:         "Distributed multilevel hypergraph partitioner",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			if len(args) == 1 {
				v.Set("hypergraph", args[0])
			}
			if err := util.ReadConfig(v, configPath); err != nil {
				return err
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			if cfg.Hypergraph == "" {
				return fmt.Errorf("no hypergraph file given")
			}
			return run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "config file (default ./data/config.*)")
	f.IntP("parts", "k", 2, "number of blocks")
	f.IntP("procs", "p", 1, "number of processes")
	f.Float64("balance", 0.05, "allowed imbalance")
	f.Int("para-runs", 1, "independent multilevel runs")
	f.Uint64("seed", 1, "random seed")
	f.Bool("debug", false, "check invariants after every level")
	f.String("log-level", "info", "debug, info, warn or error")
	f.String("log-format", "console", "json or console")
	f.StringSlice("log-output", []string{"stderr"}, "log sinks: stderr, stdout or file paths")
	f.String("strategy", "first-choice", "coarsening strategy: first-choice or model-2d")
	f.Int("min-nodes", 200, "stop coarsening below this many vertices")
	f.String("visit-order", "random", "vertex visit order while matching")
	f.Int("seq-runs", 4, "initial partitioning runs on the coarsest level")
	f.Bool("vcycle", true, "run nested V-cycles")
	f.Bool("approx-refine", false, "skip long hyperedges while refining")
	f.Bool("shuffle", false, "move vertices to random ranks before every run")
	f.String("transport", "local", "local (goroutine ranks) or ws (one rank per OS process)")
	f.Int("rank", 0, "rank of this process with the ws transport")
	f.StringSlice("peers", nil, "listen address of every rank with the ws transport")
	f.StringP("output", "o", "", "write the best partition here")
	f.String("metrics-addr", "", "serve /metrics and /status on this address")

	cmd.AddCommand(newEvaluateCommand(ctx))
	return cmd
}

// bindFlags binds only flags set on the command line so config files and
// HGPART_* variables still apply to the rest.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

type controllerStatus struct {
	ctrl atomic.Pointer[vcycle.Controller]
}

func (cs *controllerStatus) Status() vcycle.Status {
	if ctrl := cs.ctrl.Load(); ctrl != nil {
		return ctrl.Status()
	}
	return vcycle.Status{Phase: "loading"}
}

func run(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(
		logger.WithLevel(cfg.Log.Level),
		logger.WithFormat(cfg.Log.Format),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
	)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	status := &controllerStatus{}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.MetricsAddr != "" {
		srv := http.NewServer(log, status)
		g.Go(func() error {
			return srv.Run(gctx, cfg.MetricsAddr)
		})
	}

	partition := func(ctx context.Context, c comm.Communicator) error {
		e, err := engine.LoadEngine(cfg, c, log)
		if err != nil {
			return err
		}
		if c.Rank() == 0 || cfg.Transport.Kind == "ws" {
			status.ctrl.Store(e.GetController())
		}
		return e.Run(ctx)
	}

	g.Go(func() error {
		defer cancel()
		switch cfg.Transport.Kind {
		case "ws":
			mesh, err := wsmesh.Dial(gctx, wsmesh.Config{Rank: cfg.Transport.Rank, Addrs: cfg.Transport.Peers}, log)
			if err != nil {
				return err
			}
			defer mesh.Close()
			return partition(gctx, mesh)
		default:
			return comm.Run(gctx, cfg.NumProcs, partition)
		}
	})

	if err := g.Wait(); err != nil {
		log.Error("partitioning failed", zap.Error(err))
		return err
	}
	return nil
}
