package model

import "time"

type YoutubeVideoID string

type YoutubeChannelID string

// VideoRef is a video as seen in a channel listing: just enough to order a feed.
type VideoRef struct {
	ID          YoutubeVideoID
	PublishedAt time.Time
}
