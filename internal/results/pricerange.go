package results

// DeriveRange returns the full price range of the stitched set, or [0,0] when it is empty.
func DeriveRange(stitched []StitchedHotel) PriceRange {
	var (
		r     PriceRange
		found bool
	)
	for _, h := range stitched {
		if h.Price == nil {
			continue
		}
		p := *h.Price
		if !found {
			r = PriceRange{Min: p, Max: p}
			found = true
			continue
		}
		if p < r.Min {
			r.Min = p
		}
		if p > r.Max {
			r.Max = p
		}
	}
	return r
}
