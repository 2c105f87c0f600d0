package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CoarseningLevels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgpart_coarsening_levels_total",
		Help: "Coarser levels built by this process",
	})

	ClustersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgpart_clusters_created_total",
		Help: "Process-local clusters created during matching",
	})

	// MatchRequests counts decided cross-process match requests by outcome (accepted, rejected).
	MatchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hgpart_match_requests_total",
		Help: "Cross-process match requests decided by this process",
	}, []string{"outcome"})

	RefinementMoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgpart_refinement_moves_total",
		Help: "Vertex moves applied by the distributed refiner",
	})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hgpart_phase_duration_seconds",
		Help:    "Wall time of the partitioner phases",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 60, 300},
	}, []string{"phase"})

	BestCut = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hgpart_best_cut",
		Help: "Best cutsize found so far",
	})

	VCycleGain = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hgpart_vcycle_gain_total",
		Help: "Cutsize removed by nested V-cycles",
	})
)
