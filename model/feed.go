package model

// Feed is the subscription feed as last saved: video ids, most recent first.
type Feed []YoutubeVideoID
