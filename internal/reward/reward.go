// Package reward computes merge rewards from maintainer feedback.
package reward

import "sort"

// Level is the tier derived from total XP.
type Level string

const (
	LevelBeginner    Level = "Beginner"
	LevelContributor Level = "Contributor"
	LevelPro         Level = "Pro"
	LevelElite       Level = "Elite"
)

// Bonus names recognized by the calculator.
const (
	BonusBountyBacked  = "Issue was bounty-backed"
	BonusQuickMerge    = "PR merged within 24–48 hrs"
	BonusReviewedOther = "Contributor also reviewed other PRs"
	BonusAddedTests    = "Contributor added meaningful tests"
)

var bonusPoints = map[string]float64{
	BonusBountyBacked:  10,
	BonusQuickMerge:    5,
	BonusReviewedOther: 5,
	BonusAddedTests:    10,
}

var thresholds = []struct {
	min   float64
	level Level
}{
	{30, LevelElite},
	{20, LevelPro},
	{10, LevelContributor},
}

// DefaultCriteria are the rating criteria offered by the merge dialog.
var DefaultCriteria = []string{
	"Code quality",
	"Documentation",
	"Test coverage",
	"Communication",
}

// Feedback is the maintainer's assessment of a merged pull request.
type Feedback struct {
	Ratings          map[string]float64 `json:"ratings"`
	Bonuses          map[string]bool    `json:"bonuses"`
	ComplexityWeight *float64           `json:"complexityWeight,omitempty"`
}

// Result is the computed reward.
type Result struct {
	BaseScore       float64 `json:"baseScore"`
	BonusScore      float64 `json:"bonusScore"`
	MaintainerScore float64 `json:"maintainerScore"`
	TotalXP         float64 `json:"totalXP"`
	Level           Level   `json:"level"`
}

// Calculate computes the reward for f. Unknown bonus names count zero and a
// missing weight counts one.
func Calculate(f Feedback) Result {
	var r Result
	// Sum in key order so float addition is reproducible across calls.
	for _, k := range sortedKeys(f.Ratings) {
		r.BaseScore += f.Ratings[k]
	}
	for _, name := range sortedKeys(f.Bonuses) {
		if f.Bonuses[name] {
			r.BonusScore += bonusPoints[name]
		}
	}

	weight := 1.0
	if f.ComplexityWeight != nil {
		weight = *f.ComplexityWeight
	}
	r.MaintainerScore = r.BaseScore * weight
	r.TotalXP = r.MaintainerScore + r.BonusScore
	r.Level = LevelFor(r.TotalXP)
	return r
}

// LevelFor maps total XP to a level. Lower bounds are inclusive.
func LevelFor(xp float64) Level {
	for _, t := range thresholds {
		if xp >= t.min {
			return t.level
		}
	}
	return LevelBeginner
}

// BonusNames lists the recognized bonuses in a stable order.
func BonusNames() []string {
	return []string{BonusBountyBacked, BonusQuickMerge, BonusReviewedOther, BonusAddedTests}
}

// BonusPoints returns the point value of a bonus, zero when unknown.
func BonusPoints(name string) float64 {
	return bonusPoints[name]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
