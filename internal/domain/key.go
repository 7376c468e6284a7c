package domain

// KeyKind tags the source a canonical equality key was derived from. Keys of
// different kinds never match, so list answers compare only by item identity
// and can never collide with an incidental string value.
type KeyKind int

const (
	// KeyInvalid marks a value that failed canonicalization. It matches
	// nothing, including another invalid key.
	KeyInvalid KeyKind = iota
	KeyListItem
	KeyValue
	KeyLabel
)

// Key is the canonical equality token for one submitted or official value.
// Precedence at construction time is list-item id > canonical value > label.
type Key struct {
	Kind  KeyKind
	Value string
}

// Matches reports whether two keys denote the same accepted value.
func (k Key) Matches(other Key) bool {
	if k.Kind == KeyInvalid || other.Kind == KeyInvalid {
		return false
	}
	return k.Kind == other.Kind && k.Value == other.Value
}

// MatchesAny reports whether the key matches any of the official keys.
func (k Key) MatchesAny(official []Key) bool {
	for _, o := range official {
		if k.Matches(o) {
			return true
		}
	}
	return false
}
