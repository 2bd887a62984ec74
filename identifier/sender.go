package identifier

// Sender is the party an authorization response claims to come from.
// It is either a did with an identifier encoding, or any other string
// for which a synthetic identifier is derived.
type Sender struct {
	Raw string
	DID *DID

	id ID
}

// ParseSender classifies raw as a supported did or an unsupported sender.
// It never fails: an unparseable sender is a valid alternative input.
func ParseSender(raw string) Sender {
	if did, err := ParseDID(raw); err == nil {
		return Sender{Raw: raw, DID: did, id: did.ID}
	}
	return Sender{Raw: raw, id: FromUnsupportedSender(raw)}
}

// ID returns the identifier the sender is expected to prove ownership of.
func (s Sender) ID() ID {
	return s.id
}

// Supported reports whether the sender is a did with an identifier encoding.
func (s Sender) Supported() bool {
	return s.DID != nil
}

// ChainKey returns the resolver key for the sender, when it is known.
func (s Sender) ChainKey() (string, bool) {
	if s.DID == nil || s.DID.Blockchain == "" {
		return "", false
	}
	return s.DID.ChainKey(), true
}

func (s Sender) String() string {
	return s.Raw
}
