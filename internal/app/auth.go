package app

import "quiz-attempt-service/internal/domain"

// Authenticator maps a caller's credential to an identity and role. The
// account system itself lives outside this service; only this boundary is
// consumed here.
type Authenticator interface {
	Authenticate(token string) (domain.Caller, bool)
}

// StaticAuthenticator authenticates against fixed token tables, suitable
// for config-driven deployments and tests.
type StaticAuthenticator struct {
	admins map[string]string // token -> user id
	users  map[string]string
}

func NewStaticAuthenticator(adminTokens, userTokens map[string]string) *StaticAuthenticator {
	return &StaticAuthenticator{admins: adminTokens, users: userTokens}
}

func (a *StaticAuthenticator) Authenticate(token string) (domain.Caller, bool) {
	if token == "" {
		return domain.Caller{}, false
	}
	if id, ok := a.admins[token]; ok {
		return domain.Caller{UserID: id, Role: domain.RoleAdmin}, true
	}
	if id, ok := a.users[token]; ok {
		return domain.Caller{UserID: id, Role: domain.RoleUser}, true
	}
	return domain.Caller{}, false
}
