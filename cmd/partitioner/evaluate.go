package main

import (
	"context"
	"fmt"

	"github.com/lintang-b-s/hgpart/pkg/comm"
	"github.com/lintang-b-s/hgpart/pkg/datastructure"
	"github.com/spf13/cobra"
)

// newEvaluateCommand reports the cut and block weights of a partition file.
func newEvaluateCommand(ctx context.Context) *cobra.Command {
	var numParts int
	cmd := &cobra.Command{
		Use:   "evaluate <hypergraph.hgr> <partition>",
		Short: "Print cutsize and imbalance of a partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			part, err := datastructure.ReadPartition(args[1])
			if err != nil {
				return err
			}

			var serial *datastructure.SerialHypergraph
			err = comm.Run(ctx, 1, func(ctx context.Context, c comm.Communicator) error {
				h, err := datastructure.ReadHypergraph(args[0], 0, 1)
				if err != nil {
					return err
				}
				serial, err = datastructure.GatherSerial(ctx, c, h)
				return err
			})
			if err != nil {
				return err
			}
			if len(part) != serial.NumVertices() {
				return fmt.Errorf("partition has %d entries for %d vertices", len(part), serial.NumVertices())
			}

			k := numParts
			for _, p := range part {
				k = max(k, p+1)
			}
			weights := make([]int, k)
			for v, p := range part {
				if p < 0 {
					return fmt.Errorf("vertex %d has block %d", v+1, p)
				}
				weights[p] += serial.VertexWeight(v)
			}
			heaviest := 0
			for _, w := range weights {
				heaviest = max(heaviest, w)
			}
			ave := float64(serial.TotalWeight()) / float64(k)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cutsize %d\n", serial.CutSize(part))
			fmt.Fprintf(out, "imbalance %.4f\n", float64(heaviest)/ave-1)
			for p, w := range weights {
				fmt.Fprintf(out, "block %d weight %d\n", p, w)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&numParts, "parts", "k", 2, "number of blocks")
	return cmd
}
