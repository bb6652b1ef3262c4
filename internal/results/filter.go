package results

import "strings"

// Filter keeps hotels that satisfy every predicate of state:
// a rating within [MinStar, MaxStar], a price within PriceRange, and a
// description mentioning each enabled tag.
//
// Tags are plain case-insensitive substring matches over the description, so
// "no temple nearby" still counts as mentioning a temple.
func Filter(stitched []StitchedHotel, state FilterState) []StitchedHotel {
	tags := state.Tags.Enabled()

	out := make([]StitchedHotel, 0, len(stitched))
	for _, h := range stitched {
		if h.Rating < state.MinStar || h.Rating > state.MaxStar {
			continue
		}
		if h.Price == nil || *h.Price < state.PriceRange.Min || *h.Price > state.PriceRange.Max {
			continue
		}
		if !mentionsAll(h.Description, tags) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func mentionsAll(description string, tags []Tag) bool {
	if len(tags) == 0 {
		return true
	}
	lower := strings.ToLower(description)
	for _, t := range tags {
		if !strings.Contains(lower, string(t)) {
			return false
		}
	}
	return true
}
