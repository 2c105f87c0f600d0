package vcycle

import (
	"context"
	"fmt"
	"time"

	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"go.uber.org/zap"
)

type Stats struct {
	CoarsenTime time.Duration
	InitialTime time.Duration
	RefineTime  time.Duration
	TotalTime   time.Duration

	RunTimes    []time.Duration
	RunCuts     []int
	VCycleGains []int

	// cut after every nested V-cycle iteration, in order
	VCycleTrace []int

	vcycleGain int
}

func (c *Controller) Stats() Stats {
	return c.stats
}

// OtherTime is the part of the total spent outside the three phases.
func (s Stats) OtherTime() time.Duration {
	return max(0, s.TotalTime-s.CoarsenTime-s.InitialTime-s.RefineTime)
}

func (s Stats) AverageRunTime() time.Duration {
	if len(s.RunTimes) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.RunTimes {
		sum += d
	}
	return sum / time.Duration(len(s.RunTimes))
}

func (c *Controller) WorstCutsize() int {
	return c.worstCutsize
}

func (c *Controller) AverageCutsize() float64 {
	if len(c.stats.RunCuts) == 0 {
		return 0
	}
	return float64(c.totalCutsize) / float64(len(c.stats.RunCuts))
}

func percentOf(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

// LogSummary logs cutsizes and phase timings. only rank 0 writes.
func (c *Controller) LogSummary() {
	if c.comm.Rank() != 0 {
		return
	}
	s := c.stats
	c.log.Info("partitioning summary",
		zap.Int("runs", len(s.RunCuts)),
		zap.Int("bestCut", c.bestCutsize),
		zap.Int("worstCut", c.worstCutsize),
		zap.Float64("averageCut", c.AverageCutsize()),
		zap.Int("maxPartWeight", c.maxPartWt),
		zap.Int("maxVertexWeight", c.maxVertexWt),
		zap.Duration("total", s.TotalTime),
		zap.Duration("averageRun", s.AverageRunTime()),
		zap.String("coarsen", fmt.Sprintf("%v (%.1f%%)", s.CoarsenTime, percentOf(s.CoarsenTime, s.TotalTime))),
		zap.String("initial", fmt.Sprintf("%v (%.1f%%)", s.InitialTime, percentOf(s.InitialTime, s.TotalTime))),
		zap.String("refine", fmt.Sprintf("%v (%.1f%%)", s.RefineTime, percentOf(s.RefineTime, s.TotalTime))),
		zap.String("other", fmt.Sprintf("%v (%.1f%%)", s.OtherTime(), percentOf(s.OtherTime(), s.TotalTime))),
	)
}

// GatherBestPartition collects the best partition of all ranks on every rank, in global vertex order.
func (c *Controller) GatherBestPartition(ctx context.Context) ([]int, error) {
	parts, err := c.comm.AllGather(ctx, c.bestPartition)
	if err != nil {
		return nil, err
	}
	global := make([]int, 0, c.hypergraph.TotalVertices())
	for _, p := range parts {
		global = append(global, p...)
	}
	return global, nil
}

// WritePartitionFile writes the best partition to filename from rank 0. every rank must call it.
func (c *Controller) WritePartitionFile(ctx context.Context, filename string) error {
	global, err := c.GatherBestPartition(ctx)
	if err != nil {
		return err
	}
	if c.comm.Rank() != 0 {
		return nil
	}
	if err := datastructure.WritePartition(filename, global); err != nil {
		return err
	}
	c.log.Info("wrote partition", zap.String("file", filename), zap.Int("vertices", len(global)))
	return nil
}
