package models

import "fmt"

// Message belongs to a match and is never modified after it is written.
type Message struct {
	MatchID   string `dynamodbav:"matchId" json:"matchId"`
	SK        string `dynamodbav:"SK" json:"-"`
	MessageID string `dynamodbav:"messageId" json:"messageId"`
	SenderID  string `dynamodbav:"senderId" json:"senderId"`
	Text      string `dynamodbav:"text" json:"text"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
	Seq       int64  `dynamodbav:"seq" json:"seq"`
}

// MessageSK orders messages of a match by their sequence number.
func MessageSK(seq int64) string {
	return fmt.Sprintf("MSG#%012d", seq)
}
