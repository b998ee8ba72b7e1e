package auth

// Identity is the normalized value extracted from a verified provider
// ID token. It contains facts only, no decisions: which profile kind the
// principal belongs to is resolved later against the record store.
//
// An Identity is request-scoped. It is never persisted by this package;
// writing profile rows is the repository's job.
type Identity struct {
	Email   string // required, the natural identity key
	Name    string
	Picture string // profile picture URL
}
