// Package types provides the records shared by the client, the view-model,
// the job history and the console.
package types

import "strings"

// ChannelStatus is the collection state of a channel as reported by the backend.
type ChannelStatus string

const (
	ChannelActive   ChannelStatus = "active"
	ChannelInactive ChannelStatus = "inactive"
)

// Channel is one collected Telegram channel.
type Channel struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Subscribers int64         `json:"subscribers"`
	Category    string        `json:"category"`
	Admin       string        `json:"admin"`
	LastChecked string        `json:"lastChecked"` // YYYY-MM-DD, empty if never checked
	Status      ChannelStatus `json:"status"`

	// Detail fields, shown in the expanded view only
	Description string   `json:"description,omitempty"`
	TgLink      string   `json:"tgLink,omitempty"`
	Language    string   `json:"language,omitempty"`
	PostsPerDay float64  `json:"postsPerDay"` // backend reports fractional averages
	AvgViews    int64    `json:"avgViews"`
	Contacts    []string `json:"contacts,omitempty"`
}

// Link returns the public t.me link for the channel.
// The backend link wins; otherwise it is derived from the slug.
func (c Channel) Link() string {
	if c.TgLink != "" {
		return c.TgLink
	}
	handle := strings.TrimPrefix(strings.TrimSpace(c.Slug), "@")
	if handle == "" {
		return ""
	}
	return "https://t.me/" + handle
}

// IsActive reports whether the backend marks the channel active.
func (c Channel) IsActive() bool {
	return c.Status == ChannelActive
}

// ChannelList is the directory endpoint's GET response.
// Absent fields decode to their zero values (nil slice, 0).
type ChannelList struct {
	Channels []Channel `json:"channels"`
	Total    int       `json:"total"`
}

// CollectResult is the directory endpoint's POST response.
type CollectResult struct {
	Status   string `json:"status,omitempty"`
	Message  string `json:"message"`
	Inserted int    `json:"inserted,omitempty"`
}
