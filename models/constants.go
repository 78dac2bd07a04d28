package models

// Table names
const (
	UserProfilesTable = "Users"
	InteractionsTable = "Interactions"
	MatchesTable      = "Matches"
	MessagesTable     = "Messages"
)

// RoleGeohashIndex is the GSI over Users: partition "role", sort "geohash".
const RoleGeohashIndex = "role-geohash-index"

// Interaction types
const (
	InteractionTypeLike = "like"
	InteractionTypePass = "pass"
)

// GeohashPrecision is the length of the geohash stored on every profile.
const GeohashPrecision = 10

// TimeLayout is a fixed-width UTC layout, so stored timestamps sort as strings.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"
