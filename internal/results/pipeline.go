package results

import "github.com/alex-user-go/stayfinder/internal/feeds"

// Input is everything the pipeline depends on. HotelsVersion and PricesVersion
// identify the feed payloads; equal versions must mean equal payloads.
type Input struct {
	HotelsVersion uint64
	PricesVersion uint64
	Hotels        []feeds.HotelRecord
	Prices        []feeds.PriceRecord
	Filter        FilterState
	Sort          SortCriterion
	PageCount     int
}

// Output is one evaluation of Paginate(Sort(Filter(Stitch(H, P), F), S), N).
type Output struct {
	Stitched []StitchedHotel
	// Generation changes whenever Stitched is recomputed from new feed data.
	Generation uint64
	Sorted     []StitchedHotel
	Visible    []StitchedHotel
}

type stitchKey struct {
	hotels, prices uint64
}

type sortKey struct {
	generation uint64
	filter     FilterState
	sort       SortCriterion
}

// Pipeline evaluates the result pipeline, reusing each stage while its inputs
// are unchanged. It is not safe for concurrent use.
type Pipeline struct {
	stitchKey  stitchKey
	stitched   []StitchedHotel
	generation uint64

	sortKey sortKey
	sorted  []StitchedHotel
	primed  bool
}

// NewPipeline creates an empty Pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Run evaluates the pipeline for in.
func (p *Pipeline) Run(in Input) Output {
	sk := stitchKey{hotels: in.HotelsVersion, prices: in.PricesVersion}
	if !p.primed || sk != p.stitchKey {
		p.stitched = Stitch(in.Hotels, in.Prices)
		p.stitchKey = sk
		p.generation++
	}

	fk := sortKey{generation: p.generation, filter: in.Filter, sort: in.Sort}
	if !p.primed || fk != p.sortKey {
		p.sorted = Sort(Filter(p.stitched, in.Filter), in.Sort)
		p.sortKey = fk
	}
	p.primed = true

	return Output{
		Stitched:   p.stitched,
		Generation: p.generation,
		Sorted:     p.sorted,
		Visible:    Paginate(p.sorted, in.PageCount),
	}
}
