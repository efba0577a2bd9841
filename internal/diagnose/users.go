package diagnose

import "github.com/Dicklesworthstone/osdiag/internal/model"

// SessionsShown caps the sessions listed per user.
const SessionsShown = 3

// UserSessions groups the sessions of one user.
type UserSessions struct {
	User     string              `json:"user"`
	Count    int                 `json:"count"`
	Sessions []model.UserSession `json:"sessions"`
}

// GroupSessions groups sessions by user in order of first appearance,
// keeping at most SessionsShown per user. Empty terminals are GUI logins
// and empty hosts are local.
func GroupSessions(sessions []model.UserSession) []UserSessions {
	var out []UserSessions
	index := map[string]int{}
	for _, s := range sessions {
		if s.Terminal == "" {
			s.Terminal = "GUI"
		}
		if s.Host == "" {
			s.Host = "local"
		}
		i, ok := index[s.User]
		if !ok {
			i = len(out)
			index[s.User] = i
			out = append(out, UserSessions{User: s.User})
		}
		g := &out[i]
		g.Count++
		if len(g.Sessions) < SessionsShown {
			g.Sessions = append(g.Sessions, s)
		}
	}
	return out
}
