package models

// Identity is the per-connection pseudonymous identity derived from a
// user-supplied secret on join. The secret itself is never stored; only
// the tripcode (authorization key) and the mnemonic (display label).
type Identity struct {
	Tripcode string
	Mnemonic string
}

// Message is a relayed ciphertext record. The server never decrypts
// Ciphertext; it is hex-encoded AES-GCM output (tag appended) relayed
// verbatim along with its hex-encoded nonce.
type Message struct {
	Id             string `json:"id"`
	SenderTripcode string `json:"senderTripcode"`
	Ciphertext     string `json:"ciphertext"`
	Nonce          string `json:"nonce"`
	Timestamp      int64  `json:"timestamp"`
	Deleted        bool   `json:"deleted"`
}

// MessageRecord keys a message by its room for the log sink.
type MessageRecord struct {
	RoomId  string
	Message Message
}

// Moderator is an authenticated staff account for the moderation
// control plane. Regular chat participants are anonymous and never
// have a stored profile.
type Moderator struct {
	Id         string
	Username   string
	Provider   string
	ProviderId string
	Role       string
	Created    int64
}

const (
	RoleJanitor   = "janitor"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)
