package datastructure

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/hgpart/pkg/util"
	"golang.org/x/exp/slices"
)

func openMaybeCompressed(filename string) (io.Reader, func() error, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(filename, ".bz2") {
		return f, f.Close, nil
	}

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return bz, func() error {
		bz.Close()
		return f.Close()
	}, nil
}

func parseInts(line string) ([]int, error) {
	fields := strings.Fields(line)
	out := make([]int, len(fields))
	for i, field := range fields {
		x, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

/*
ReadHypergraph reads rank's share of an hMETIS hypergraph file (.bz2 accepted):

	numHedges numVertices [fmt]
	[hedgeWeight] pin pin ...     (numHedges lines, pins 1-based)
	vertexWeight                  (numVertices lines when fmt is 10 or 11)

fmt 1 carries hyperedge weights, 10 vertex weights, 11 both. vertices are split
in contiguous blocks, hyperedge i is stored on rank i % numProcs.
*/
func ReadHypergraph(filename string, rank, numProcs int) (*Hypergraph, error) {
	r, closeFn, err := openMaybeCompressed(filename)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	br := bufio.NewReader(r)
	line, err := util.ReadLine(br)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrBadParamInput, "read header of %s", filename)
	}
	header, err := parseInts(line)
	if err != nil || len(header) < 2 {
		return nil, util.WrapErrorf(err, util.ErrBadParamInput, "bad header %q", line)
	}
	numHedges, numVertices := header[0], header[1]
	format := 0
	if len(header) > 2 {
		format = header[2]
	}
	hasHedgeWeights := format == 1 || format == 11
	hasVertexWeights := format == 10 || format == 11

	if numProcs > numVertices {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "%d processes for %d vertices",
			numProcs, numVertices)
	}

	vtxDist := BlockDistribution(numVertices, numProcs)
	var (
		hedgeWeights []int
		hedgeOffsets = []int{0}
		pins         []int
	)
	for e := 0; e < numHedges; e++ {
		line, err := util.ReadLine(br)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrBadParamInput, "read hyperedge %d", e)
		}
		if e%numProcs != rank {
			continue
		}
		fields, err := parseInts(line)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrBadParamInput, "parse hyperedge %d", e)
		}
		wt := 1
		if hasHedgeWeights {
			wt, fields = fields[0], fields[1:]
		}
		for i := range fields {
			fields[i]--
			if fields[i] < 0 || fields[i] >= numVertices {
				return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "hyperedge %d: pin %d out of range",
					e, fields[i]+1)
			}
		}
		slices.Sort(fields)
		fields = slices.Compact(fields)

		hedgeWeights = append(hedgeWeights, wt)
		pins = append(pins, fields...)
		hedgeOffsets = append(hedgeOffsets, len(pins))
	}

	vertexWeights := make([]int, vtxDist[rank+1]-vtxDist[rank])
	totalWeight := 0
	for v := 0; v < numVertices; v++ {
		wt := 1
		if hasVertexWeights {
			line, err := util.ReadLine(br)
			if err != nil {
				return nil, util.WrapErrorf(err, util.ErrBadParamInput, "read weight of vertex %d", v)
			}
			wt, err = strconv.Atoi(line)
			if err != nil || wt <= 0 {
				return nil, util.WrapErrorf(err, util.ErrBadParamInput, "vertex %d: bad weight %q", v, line)
			}
		}
		totalWeight += wt
		if v >= vtxDist[rank] && v < vtxDist[rank+1] {
			vertexWeights[v-vtxDist[rank]] = wt
		}
	}

	return NewHypergraph(rank, numProcs, vtxDist, vertexWeights, totalWeight,
		hedgeWeights, hedgeOffsets, pins), nil
}

// WritePartition writes one block id per line, bzip2 compressed when filename ends in .bz2.
func WritePartition(filename string, part []int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	var out io.Writer = f
	if strings.HasSuffix(filename, ".bz2") {
		bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
		if err != nil {
			return err
		}
		defer bz.Close()
		out = bz
	}

	w := bufio.NewWriter(out)
	for _, p := range part {
		if _, err := fmt.Fprintf(w, "%d\n", p); err != nil {
			return err
		}
	}
	return w.Flush()
}

func ReadPartition(filename string) ([]int, error) {
	r, closeFn, err := openMaybeCompressed(filename)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	br := bufio.NewReader(r)
	var part []int
	for {
		line, err := util.ReadLine(br)
		if errors.Is(err, io.EOF) {
			return part, nil
		}
		if err != nil {
			return nil, err
		}
		p, err := strconv.Atoi(line)
		if err != nil {
			return nil, err
		}
		part = append(part, p)
	}
}
