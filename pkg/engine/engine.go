package engine

import (
	"context"

	"github.com/lintang-b-s/hgpart/pkg"
	"github.com/lintang-b-s/hgpart/pkg/coarsener"
	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/config"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/lintang-b-s/hgpart/pkg/partitioner"
	"github.com/lintang-b-s/hgpart/pkg/refiner"
	"github.com/lintang-b-s/hgpart/pkg/vcycle"
	"go.uber.org/zap"
)

// Engine is one rank's partitioner, assembled from a Config.
type Engine struct {
	cfg        *config.Config
	comm       comm.Communicator
	hypergraph *datastructure.Hypergraph
	controller *vcycle.Controller
	log        *zap.Logger
}

func (e *Engine) GetController() *vcycle.Controller {
	return e.controller
}

func (e *Engine) GetHypergraph() *datastructure.Hypergraph {
	return e.hypergraph
}

func CoarsenerOptions(cfg *config.Config) coarsener.Options {
	divByCluWt, divByHedgeLen := pkg.ConnectivityMetric(cfg.Coarsening.ConnectivityMetric)
	return coarsener.Options{
		Strategy:          coarsener.GetStrategy(cfg.Coarsening.Strategy),
		ReductionRatio:    cfg.Coarsening.ReductionRatio,
		MinNodes:          cfg.Coarsening.MinNodes,
		VisitOrder:        pkg.GetVisitOrder(cfg.Coarsening.VertexVisitOrder),
		RequestOrder:      pkg.GetRequestOrder(cfg.Coarsening.MatchRequestOrder),
		DivByCluWt:        divByCluWt,
		DivByHedgeLen:     divByHedgeLen,
		HedgeThreshold:    cfg.Coarsening.HedgeThreshold,
		MinReductionRatio: cfg.Coarsening.MinReductionRatio,
		Seed:              cfg.Seed,
		Debug:             cfg.Debug,
	}
}

func ControllerOptions(cfg *config.Config) vcycle.Options {
	return vcycle.Options{
		NumParts:                 cfg.NumParts,
		NumParaRuns:              cfg.NumParaRuns,
		BalanceConstraint:        cfg.BalanceConstraint,
		MaxVertexWeightFraction:  cfg.Coarsening.MaxVertexWeightFraction,
		StartPercentile:          cfg.Coarsening.StartPercentile,
		PercentileIncrement:      cfg.Coarsening.PercentileIncrement,
		ApproxRefine:             cfg.Refinement.ApproxRefine,
		VCycle:                   cfg.VCycle.Enabled,
		LimitOnCycles:            cfg.VCycle.LimitOnCycles,
		LimAsPercentOfCut:        cfg.VCycle.LimAsPercentOfCut,
		KeepPartitionsWithin:     cfg.VCycle.KeepPartitionsWithin,
		ReductionInKeepThreshold: cfg.VCycle.ReductionInKeepThreshold,
		ShuffleVertices:          cfg.VCycle.ShuffleVertices,
		ShuffleByPartition:       cfg.VCycle.ShuffleByPartition,
		Seed:                     cfg.Seed,
	}
}

func SeqOptions(cfg *config.Config) partitioner.SeqOptions {
	return partitioner.SeqOptions{
		NumParts:          cfg.NumParts,
		NumSeqRuns:        cfg.Initial.NumSeqRuns,
		AcceptProp:        cfg.Initial.AcceptProp,
		SourceSinkRate:    cfg.Initial.SourceSinkRate,
		FlowSeeds:         cfg.Initial.FlowSeeds,
		MaxPasses:         cfg.Initial.MaxPasses,
		Workers:           cfg.Initial.Workers,
		BalanceConstraint: cfg.BalanceConstraint,
		Seed:              cfg.Seed,
	}
}

// NewEngine builds the rank's components around h.
func NewEngine(cfg *config.Config, c comm.Communicator, h *datastructure.Hypergraph, logger *zap.Logger) *Engine {
	co := coarsener.NewCoarsener(c, CoarsenerOptions(cfg), logger)
	restricted := co.WithStrategy(coarsener.Restricted)
	ref := refiner.NewRefiner(c, refiner.Options{
		NumParts:     cfg.NumParts,
		MaxPasses:    cfg.Refinement.MaxPasses,
		ApproxRefine: cfg.Refinement.ApproxRefine,
	}, logger)
	seq := partitioner.NewSeqController(c, SeqOptions(cfg), logger)

	ctrl := vcycle.NewController(c, ControllerOptions(cfg), h, co, restricted, ref, seq, logger)
	ctrl.SetWeightConstraints()

	return &Engine{
		cfg:        cfg,
		comm:       c,
		hypergraph: h,
		controller: ctrl,
		log:        logger,
	}
}

// LoadEngine reads the rank's share of cfg.Hypergraph and builds the engine around it.
func LoadEngine(cfg *config.Config, c comm.Communicator, logger *zap.Logger) (*Engine, error) {
	if c.Rank() == 0 {
		logger.Info("reading hypergraph", zap.String("file", cfg.Hypergraph), zap.Int("procs", c.Size()))
	}
	h, err := datastructure.ReadHypergraph(cfg.Hypergraph, c.Rank(), c.Size())
	if err != nil {
		return nil, err
	}
	if c.Rank() == 0 {
		logger.Info("hypergraph loaded",
			zap.Int("vertices", h.TotalVertices()),
			zap.Int("totalWeight", h.TotalWeight()),
			zap.Int("localHedges", h.NumHedges()),
		)
	}
	return NewEngine(cfg, c, h, logger), nil
}

// Run partitions the hypergraph and writes the best partition when an output file is set.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.controller.RunPartitioner(ctx); err != nil {
		return err
	}
	e.controller.StoreBestPartition()
	e.controller.LogSummary()
	if e.cfg.Output.PartitionFile != "" {
		return e.controller.WritePartitionFile(ctx, e.cfg.Output.PartitionFile)
	}
	return nil
}
