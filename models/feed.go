package models

// Sponsored is a monetization entry from the role-specific rotation list.
type Sponsored struct {
	Title    string `json:"title" yaml:"title"`
	ImageURL string `json:"imageUrl" yaml:"image_url"`
	LinkURL  string `json:"linkUrl" yaml:"link_url"`
}

// FeedItem is either a real candidate or a sponsored/house entry.
type FeedItem struct {
	ID        string       `json:"id"`
	Profile   *UserProfile `json:"profile,omitempty"`
	Sponsored *Sponsored   `json:"sponsored,omitempty"`
	IsAd      bool         `json:"isAd"`
	IsHouse   bool         `json:"isHouse,omitempty"`
}
