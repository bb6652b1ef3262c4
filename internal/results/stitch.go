package results

import (
	"sort"

	"github.com/alex-user-go/stayfinder/internal/feeds"
)

// Stitch joins hotels with their prices by id. Hotels without a price are
// dropped. The first price record wins when an id repeats. The result is
// ordered by price, cheapest first.
func Stitch(hotels []feeds.HotelRecord, prices []feeds.PriceRecord) []StitchedHotel {
	if len(hotels) == 0 || len(prices) == 0 {
		return []StitchedHotel{}
	}

	byID := make(map[string]feeds.PriceRecord, len(prices))
	for _, p := range prices {
		if _, ok := byID[p.ID]; !ok {
			byID[p.ID] = p
		}
	}

	stitched := make([]StitchedHotel, 0, len(prices))
	for _, h := range hotels {
		p, ok := byID[h.ID]
		if !ok {
			continue
		}
		price, rank := p.Price, p.SearchRank
		stitched = append(stitched, StitchedHotel{
			HotelRecord: h,
			Price:       &price,
			SearchRank:  &rank,
		})
	}

	sort.SliceStable(stitched, func(i, j int) bool {
		return *stitched[i].Price < *stitched[j].Price
	})
	return stitched
}
