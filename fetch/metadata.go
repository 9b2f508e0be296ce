package fetch

import (
	"context"

	"ewintr.nl/ytfeed/model"
)

type Metadata struct {
	Title       string
	Description string
	Duration    string
	PublishedAt string
	Thumbnail   string
}

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ids []model.YoutubeVideoID) (map[model.YoutubeVideoID]Metadata, error)
}
