package reward

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestCalculate_Scenario(t *testing.T) {
	got := Calculate(Feedback{
		Ratings:          map[string]float64{"a": 5, "b": 5},
		Bonuses:          map[string]bool{BonusBountyBacked: true},
		ComplexityWeight: ptr(1),
	})

	assert.Equal(t, Result{
		BaseScore:       10,
		BonusScore:      10,
		MaintainerScore: 10,
		TotalXP:         20,
		Level:           LevelPro,
	}, got)
}

func TestCalculate_Bonuses(t *testing.T) {
	tests := []struct {
		name    string
		bonuses map[string]bool
		want    float64
	}{
		{name: "none", bonuses: nil, want: 0},
		{name: "all", bonuses: map[string]bool{
			BonusBountyBacked: true, BonusQuickMerge: true, BonusReviewedOther: true, BonusAddedTests: true,
		}, want: 30},
		{name: "false flags ignored", bonuses: map[string]bool{BonusAddedTests: false, BonusQuickMerge: true}, want: 5},
		{name: "unknown contributes zero", bonuses: map[string]bool{"Wrote a haiku": true}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(Feedback{Bonuses: tt.bonuses}).BonusScore)
		})
	}
}

func TestCalculate_WeightDefaultsToOne(t *testing.T) {
	f := Feedback{Ratings: map[string]float64{"quality": 4}}
	assert.Equal(t, 4.0, Calculate(f).MaintainerScore)

	f.ComplexityWeight = ptr(2.5)
	got := Calculate(f)
	assert.Equal(t, 10.0, got.MaintainerScore)
	assert.Equal(t, 4.0, got.BaseScore)
	assert.Equal(t, LevelContributor, got.Level)
}

func TestLevelFor_Breakpoints(t *testing.T) {
	tests := []struct {
		xp   float64
		want Level
	}{
		{0, LevelBeginner},
		{9.99, LevelBeginner},
		{10, LevelContributor},
		{19.5, LevelContributor},
		{20, LevelPro},
		{29.999, LevelPro},
		{30, LevelElite},
		{120, LevelElite},
		{-5, LevelBeginner},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.xp), "xp=%v", tt.xp)
	}
}

func TestLevelFor_Monotonic(t *testing.T) {
	rank := map[Level]int{LevelBeginner: 0, LevelContributor: 1, LevelPro: 2, LevelElite: 3}
	prev := LevelFor(-1)
	for xp := -1.0; xp <= 40; xp += 0.25 {
		cur := LevelFor(xp)
		assert.GreaterOrEqual(t, rank[cur], rank[prev], "xp=%v", xp)
		prev = cur
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		ratings := map[string]float64{}
		for j := 0; j < 6; j++ {
			ratings[string(rune('a'+j))] = rng.Float64() * 5
		}
		f := Feedback{
			Ratings:          ratings,
			Bonuses:          map[string]bool{BonusQuickMerge: rng.Intn(2) == 0, BonusAddedTests: rng.Intn(2) == 0},
			ComplexityWeight: ptr(rng.Float64() * 3),
		}

		first := Calculate(f)
		assert.Equal(t, first, Calculate(f))
		assert.Equal(t, first.MaintainerScore+first.BonusScore, first.TotalXP)
		assert.Equal(t, LevelFor(first.TotalXP), first.Level)
	}
}

func TestBonusTable(t *testing.T) {
	var total float64
	for _, name := range BonusNames() {
		total += BonusPoints(name)
	}
	assert.Equal(t, 30.0, total)
	assert.Zero(t, BonusPoints("nope"))
}
