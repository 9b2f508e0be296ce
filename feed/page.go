package feed

import "ewintr.nl/ytfeed/model"

const DefaultPerPage = 20

type Page struct {
	IDs     []model.YoutubeVideoID
	Offset  int
	Next    int
	HasNext bool
}

// Paginate cuts the page that starts at offset out of a feed. Offsets are
// clamped to the feed; the ids are not copied.
func Paginate(f model.Feed, offset, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(f) {
		offset = len(f)
	}

	end := min(offset+perPage, len(f))

	return Page{
		IDs:     f[offset:end],
		Offset:  offset,
		Next:    end,
		HasNext: end < len(f),
	}
}
