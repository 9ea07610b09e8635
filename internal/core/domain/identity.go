package domain

import "strings"

// Identity describes the authenticated user whose activity is being
// collected. Resolved by each source's who-am-i call before any fetch.
type Identity struct {
	ID       string
	Username string
	Email    string
}

// Matches reports whether an item authored by (id, username, email)
// belongs to this identity. Comparison priority is ID, then username,
// then email; the first field present on both sides and equal wins.
func (i Identity) Matches(id, username, email string) bool {
	if i.ID != "" && id != "" && i.ID == id {
		return true
	}
	if i.Username != "" && username != "" && strings.EqualFold(i.Username, username) {
		return true
	}
	if i.Email != "" && email != "" && strings.EqualFold(i.Email, email) {
		return true
	}
	return false
}

// MatchesActivity applies Matches to a normalized activity.
func (i Identity) MatchesActivity(a Activity) bool {
	return i.Matches(a.AuthorID(), a.Author, a.AuthorEmail)
}
