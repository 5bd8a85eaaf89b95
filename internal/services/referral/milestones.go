package referral

// Milestone is one row of the reward ladder. The predicate is deliberately
// table-driven: "k of the successful children qualify" plus an optional
// "the first N successful children must all qualify", so the policy lives in
// data rather than in branching code.
//
// A child qualifies when its own successful-referral count reaches
// QualifyThreshold (one hop only; the check never recurses further down).
type Milestone struct {
	Level         int
	MinSuccessful int
	// MinQualifying is the k in k-of-n one-hop-qualifying children.
	MinQualifying int
	// RequireFirstN, when set, demands that the first N children to become
	// successful all qualify.
	RequireFirstN int
	Reward        int64
}

// QualifyThreshold is the successful-referral count at which a referred
// profile counts as qualifying for its referrer's higher milestones.
const QualifyThreshold = 3

// DefaultMilestones is the production ladder.
var DefaultMilestones = []Milestone{
	{Level: 1, MinSuccessful: 3, Reward: 100},
	{Level: 2, MinSuccessful: 3, MinQualifying: 1, Reward: 150},
	{Level: 3, MinSuccessful: 3, MinQualifying: 2, Reward: 200},
	{Level: 4, MinSuccessful: 3, RequireFirstN: 3, Reward: 250},
	{Level: 5, MinSuccessful: 5, MinQualifying: 5, Reward: 300},
}

// Reached reports whether the milestone is satisfied. qualifying carries one
// flag per successful child, ordered by the moment each became successful.
func (m Milestone) Reached(successful int, qualifying []bool) bool {
	if successful < m.MinSuccessful {
		return false
	}

	if m.RequireFirstN > 0 {
		if len(qualifying) < m.RequireFirstN {
			return false
		}

		for _, q := range qualifying[:m.RequireFirstN] {
			if !q {
				return false
			}
		}
	}

	if m.MinQualifying > 0 {
		count := 0

		for _, q := range qualifying {
			if q {
				count++
			}
		}

		if count < m.MinQualifying {
			return false
		}
	}

	return true
}

// Advance walks the table strictly in level order starting above current and
// returns every milestone newly reached, stopping at the first unmet one.
// Levels can never be skipped, and a level below current is never revisited,
// which makes repeated evaluation a no-op.
func Advance(table []Milestone, current, successful int, qualifying []bool) []Milestone {
	var reached []Milestone

	for _, m := range table {
		if m.Level <= current {
			continue
		}

		if !m.Reached(successful, qualifying) {
			break
		}

		reached = append(reached, m)
	}

	return reached
}
