package convoq

// Key identifies the ordering domain: requests sharing a Key are strictly
// serialized, requests on different Keys proceed fully in parallel.
type Key struct {
	SessionID      string
	ConversationID string
}

func (k Key) String() string {
	return k.SessionID + "/" + k.ConversationID
}
