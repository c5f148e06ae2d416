package types

// Principal is the authenticated caller resolved from the access token.
type Principal struct {
	UserID string
	Email  string
	Groups []string
}

func (p *Principal) InAnyGroup(groups []string) bool {
	for _, want := range groups {
		for _, have := range p.Groups {
			if have == want {
				return true
			}
		}
	}
	return false
}
