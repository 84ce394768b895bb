package domain

// IdentityKind tags the origin of a resolved identity. Legacy data mixes
// account-keyed and free-text-keyed attempts, so identity is an explicit
// variant rather than a chain of null checks.
type IdentityKind int

const (
	// IdentityAnonymous means no stable identity: the attempt is scored but
	// exempt from dedup and grouped only by its own attempt id.
	IdentityAnonymous IdentityKind = iota
	// IdentityExternal is an account-independent identifier supplied with
	// the submission (roll number, email, phone).
	IdentityExternal
	// IdentityAuthenticated is a signed-in account id.
	IdentityAuthenticated
)

// Identity is the canonical grouping identity of a submission.
type Identity struct {
	Kind  IdentityKind
	Value string
}

// ResolveIdentity classifies a submission's identity with the precedence
// authenticated account > external identifier > anonymous.
func ResolveIdentity(userID, externalID string) Identity {
	switch {
	case userID != "":
		return Identity{Kind: IdentityAuthenticated, Value: userID}
	case externalID != "":
		return Identity{Kind: IdentityExternal, Value: externalID}
	default:
		return Identity{}
	}
}

// Key returns the dedup grouping key. Anonymous identities return "" and
// must never be grouped with each other.
func (i Identity) Key() string {
	switch i.Kind {
	case IdentityAuthenticated:
		return "user:" + i.Value
	case IdentityExternal:
		return "ext:" + i.Value
	default:
		return ""
	}
}

// Stable reports whether the identity can participate in dedup enforcement
// and identity-keyed grouping.
func (i Identity) Stable() bool {
	return i.Kind != IdentityAnonymous
}

// Authenticated reports whether the identity is a signed-in account.
func (i Identity) Authenticated() bool {
	return i.Kind == IdentityAuthenticated
}

// AttemptIdentity derives the grouping identity recorded on an attempt.
func AttemptIdentity(a *Attempt) Identity {
	return ResolveIdentity(a.UserID, a.ExternalID)
}

// GroupKey is the leaderboard grouping key for an attempt: the identity key
// when stable, else the attempt's own id so anonymous attempts stay distinct.
func GroupKey(a *Attempt) string {
	if key := AttemptIdentity(a).Key(); key != "" {
		return key
	}
	return "attempt:" + a.ID
}
