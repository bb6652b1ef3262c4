package results

// Paginate returns the first pageCount pages of sorted. A pageCount below one reveals nothing.
func Paginate(sorted []StitchedHotel, pageCount int) []StitchedHotel {
	if pageCount <= 0 {
		return []StitchedHotel{}
	}
	n := pageCount * PageSize
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n:n]
}
