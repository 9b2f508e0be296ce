package fetch

import (
	"context"
	"strings"
	"time"

	"ewintr.nl/ytfeed/model"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
	"google.golang.org/api/youtube/v3"
)

// maximum allowed by the api
const maxResults = 50

type Youtube struct {
	Client  *youtube.Service
	limiter *rate.Limiter
}

// NewYoutube wraps the api client. A nil limiter means no throttling.
func NewYoutube(client *youtube.Service, limiter *rate.Limiter) *Youtube {
	return &Youtube{
		Client:  client,
		limiter: limiter,
	}
}

func (y *Youtube) Subscriptions(ctx context.Context, pageToken string) ([]model.YoutubeChannelID, string, error) {
	if err := y.wait(ctx); err != nil {
		return nil, "", err
	}

	call := y.Client.Subscriptions.
		List([]string{"snippet"}).
		Mine(true).
		MaxResults(maxResults)

	if pageToken != "" {
		call.PageToken(pageToken)
	}

	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, "", err
	}

	ids := make([]model.YoutubeChannelID, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Snippet == nil || item.Snippet.ResourceId == nil {
			continue
		}
		ids = append(ids, model.YoutubeChannelID(item.Snippet.ResourceId.ChannelId))
	}

	return ids, response.NextPageToken, nil
}

func (y *Youtube) RecentUploads(ctx context.Context, channelID model.YoutubeChannelID, publishedAfter time.Time, pageToken string) ([]model.VideoRef, string, error) {
	if err := y.wait(ctx); err != nil {
		return nil, "", err
	}

	call := y.Client.Search.
		List([]string{"snippet"}).
		MaxResults(maxResults).
		Type("video").
		Order("date").
		ChannelId(string(channelID)).
		PublishedAfter(publishedAfter.UTC().Format(time.RFC3339))

	if pageToken != "" {
		call.PageToken(pageToken)
	}

	response, err := call.Context(ctx).Do()
	if err != nil {
		return nil, "", err
	}

	refs := make([]model.VideoRef, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		ref := model.VideoRef{ID: model.YoutubeVideoID(item.Id.VideoId)}
		if item.Snippet != nil {
			// unparseable dates stay zero and end up at the bottom of the feed
			ref.PublishedAt, _ = time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		}
		refs = append(refs, ref)
	}

	return refs, response.NextPageToken, nil
}

func (y *Youtube) FetchMetadata(ctx context.Context, ytIDs []model.YoutubeVideoID) (map[model.YoutubeVideoID]Metadata, error) {
	mds := make(map[model.YoutubeVideoID]Metadata, len(ytIDs))
	for _, chunk := range lo.Chunk(ytIDs, maxResults) {
		if err := y.wait(ctx); err != nil {
			return map[model.YoutubeVideoID]Metadata{}, err
		}

		strIDs := make([]string, len(chunk))
		for i, id := range chunk {
			strIDs[i] = string(id)
		}
		call := y.Client.Videos.
			List([]string{"snippet", "contentDetails"}).
			Id(strings.Join(strIDs, ","))

		response, err := call.Context(ctx).Do()
		if err != nil {
			return map[model.YoutubeVideoID]Metadata{}, err
		}

		for _, item := range response.Items {
			if item.Snippet == nil {
				continue
			}
			md := Metadata{
				Title:       item.Snippet.Title,
				Description: item.Snippet.Description,
				PublishedAt: item.Snippet.PublishedAt,
			}
			if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.High != nil {
				md.Thumbnail = item.Snippet.Thumbnails.High.Url
			}
			if item.ContentDetails != nil {
				md.Duration = item.ContentDetails.Duration
			}

			mds[model.YoutubeVideoID(item.Id)] = md
		}
	}

	return mds, nil
}

func (y *Youtube) wait(ctx context.Context) error {
	if y.limiter == nil {
		return nil
	}
	return y.limiter.Wait(ctx)
}
