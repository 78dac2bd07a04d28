package models

// Interaction is a directional like or pass, one per ordered pair.
type Interaction struct {
	PK         string    `dynamodbav:"PK" json:"-"` // "USER#<from>"
	SK         string    `dynamodbav:"SK" json:"-"` // "INTERACTION#<to>"
	FromUID    string    `dynamodbav:"fromUid" json:"fromUid"`
	ToUID      string    `dynamodbav:"toUid" json:"toUid"`
	Type       string    `dynamodbav:"type" json:"type"`
	CreatedAt  string    `dynamodbav:"createdAt" json:"createdAt"`
	Sender     *Snapshot `dynamodbav:"sender,omitempty" json:"sender,omitempty"`
	IsMatch    bool      `dynamodbav:"isMatch" json:"isMatch"`
	IsRevealed bool      `dynamodbav:"isRevealed" json:"isRevealed"`
}

func InteractionPK(from string) string { return "USER#" + from }
func InteractionSK(to string) string   { return "INTERACTION#" + to }
