package models

// Match is the undirected relationship created on a mutual like.
type Match struct {
	MatchID      string              `dynamodbav:"matchId" json:"matchId"`
	Users        []string            `dynamodbav:"users" json:"users"`
	Profiles     map[string]Snapshot `dynamodbav:"profiles" json:"profiles"`
	CreatedAt    string              `dynamodbav:"createdAt" json:"createdAt"`
	LastActivity string              `dynamodbav:"lastActivity" json:"lastActivity"`
	LastMessage  string              `dynamodbav:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastSender   string              `dynamodbav:"lastSender,omitempty" json:"lastSender,omitempty"`
	Unread       map[string]int      `dynamodbav:"unread" json:"unread"`
	Read         map[string]bool     `dynamodbav:"read" json:"read"`
	MessageCount int64               `dynamodbav:"messageCount" json:"messageCount"`

	// LastMessageAt is the createdAt of the newest message.
	LastMessageAt string `dynamodbav:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
}

// HasMember reports whether uid is one of the two users.
func (m *Match) HasMember(uid string) bool {
	for _, u := range m.Users {
		if u == uid {
			return true
		}
	}
	return false
}

// Other returns the member that is not uid.
func (m *Match) Other(uid string) string {
	for _, u := range m.Users {
		if u != uid {
			return u
		}
	}
	return ""
}
