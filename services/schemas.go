package services

import (
	"time"

	"roomie_server/models"
	"roomie_server/store"
)

// IncomingLikesIndex is the Interactions GSI keyed by the liked user.
const IncomingLikesIndex = "toUid-createdAt-index"

// Schemas describes the key layout of every table the server uses.
var Schemas = map[string]store.Schema{
	models.UserProfilesTable: {PartitionKey: "userId"},
	models.InteractionsTable: {PartitionKey: "PK", SortKey: "SK"},
	models.MatchesTable:      {PartitionKey: "matchId"},
	models.MessagesTable:     {PartitionKey: "matchId", SortKey: "SK"},
}

func profileKey(uid string) store.Key {
	return store.Key{Table: models.UserProfilesTable, PK: uid}
}

func interactionKey(from, to string) store.Key {
	return store.Key{Table: models.InteractionsTable, PK: models.InteractionPK(from), SK: models.InteractionSK(to)}
}

func matchKey(matchID string) store.Key {
	return store.Key{Table: models.MatchesTable, PK: matchID}
}

func messageKey(matchID string, seq int64) store.Key {
	return store.Key{Table: models.MessagesTable, PK: matchID, SK: models.MessageSK(seq)}
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

func timestamp(t time.Time) string {
	return t.UTC().Format(models.TimeLayout)
}
