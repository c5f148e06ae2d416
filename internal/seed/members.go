package seed

type fakeMember struct {
	ID       string
	Email    string
	Reviewer bool
}

// Seeded IDs mirror Cognito subjects so seeded cases show up for the
// matching test accounts.
var fakeMembers = []fakeMember{
	{ID: "11111111-1111-1111-1111-111111111111", Email: "ana.souza+seed1@example.com"},
	{ID: "22222222-2222-2222-2222-222222222222", Email: "bruno.lima+seed2@example.com"},
	{ID: "33333333-3333-3333-3333-333333333333", Email: "carla.mendes+seed3@example.com"},
	{ID: "44444444-4444-4444-4444-444444444444", Email: "diego.rocha+seed4@example.com"},
	{ID: "55555555-5555-5555-5555-555555555555", Email: "elisa.prado+seed5@example.com", Reviewer: true},
	{ID: "66666666-6666-6666-6666-666666666666", Email: "fabio.nunes+seed6@example.com", Reviewer: true},
}

func memberIDs(reviewers bool) []string {
	ids := make([]string, 0, len(fakeMembers))
	for _, m := range fakeMembers {
		if m.Reviewer == reviewers {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func allMemberIDs() []string {
	ids := make([]string, 0, len(fakeMembers))
	for _, m := range fakeMembers {
		ids = append(ids, m.ID)
	}
	return ids
}
