package fetch

import (
	"context"
	"strings"

	"ewintr.nl/ytfeed/model"
	"miniflux.app/client"
)

const youtubeFeedPrefix = "https://www.youtube.com/feeds/videos.xml?channel_id="

type MinifluxInfo struct {
	Endpoint string
	ApiKey   string
}

// Miniflux lists subscriptions from the YouTube channel feeds a Miniflux
// account follows, for users that keep their subscriptions there instead.
type Miniflux struct {
	client *client.Client
}

func NewMiniflux(mflInfo MinifluxInfo) *Miniflux {
	return &Miniflux{
		client: client.New(mflInfo.Endpoint, mflInfo.ApiKey),
	}
}

// Subscriptions returns everything in one page. Feeds that are not YouTube
// channel feeds are skipped.
func (m *Miniflux) Subscriptions(_ context.Context, _ string) ([]model.YoutubeChannelID, string, error) {
	feeds, err := m.client.Feeds()
	if err != nil {
		return nil, "", err
	}

	ids := make([]model.YoutubeChannelID, 0, len(feeds))
	for _, feed := range feeds {
		if id, ok := channelIDFromFeedURL(feed.FeedURL); ok {
			ids = append(ids, id)
		}
	}

	return ids, "", nil
}

func channelIDFromFeedURL(feedURL string) (model.YoutubeChannelID, bool) {
	if !strings.HasPrefix(feedURL, youtubeFeedPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(feedURL, youtubeFeedPrefix)
	if i := strings.IndexByte(id, '&'); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", false
	}

	return model.YoutubeChannelID(id), true
}
