package tui

import (
	"fmt"
	"strings"

	"github.com/pullquest/console/internal/reward"
)

const (
	maxRating  = 5
	weightStep = 0.5
	minWeight  = 0.5
	maxWeight  = 3
)

// feedbackForm captures merge feedback: one rating per criterion, the
// bonus flags and the complexity weight, in that row order.
type feedbackForm struct {
	criteria []string
	ratings  map[string]float64
	bonuses  map[string]bool
	weight   float64
	cursor   int
}

func newFeedbackForm() *feedbackForm {
	f := &feedbackForm{
		criteria: reward.DefaultCriteria,
		ratings:  make(map[string]float64, len(reward.DefaultCriteria)),
		bonuses:  make(map[string]bool),
		weight:   1,
	}
	for _, c := range f.criteria {
		f.ratings[c] = 0
	}
	return f
}

func (f *feedbackForm) rows() int {
	return len(f.criteria) + len(reward.BonusNames()) + 1
}

func (f *feedbackForm) move(delta int) {
	n := f.rows()
	f.cursor = ((f.cursor+delta)%n + n) % n
}

// adjust changes the value under the cursor. Bonus rows toggle regardless
// of direction.
func (f *feedbackForm) adjust(delta int) {
	bonuses := reward.BonusNames()
	switch {
	case f.cursor < len(f.criteria):
		c := f.criteria[f.cursor]
		v := f.ratings[c] + float64(delta)
		if v < 0 {
			v = 0
		}
		if v > maxRating {
			v = maxRating
		}
		f.ratings[c] = v
	case f.cursor < len(f.criteria)+len(bonuses):
		name := bonuses[f.cursor-len(f.criteria)]
		f.bonuses[name] = !f.bonuses[name]
	default:
		w := f.weight + float64(delta)*weightStep
		if w < minWeight {
			w = minWeight
		}
		if w > maxWeight {
			w = maxWeight
		}
		f.weight = w
	}
}

// Feedback returns a copy of the captured feedback.
func (f *feedbackForm) Feedback() reward.Feedback {
	ratings := make(map[string]float64, len(f.ratings))
	for k, v := range f.ratings {
		ratings[k] = v
	}
	bonuses := make(map[string]bool, len(f.bonuses))
	for k, v := range f.bonuses {
		bonuses[k] = v
	}
	w := f.weight
	return reward.Feedback{Ratings: ratings, Bonuses: bonuses, ComplexityWeight: &w}
}

func (f *feedbackForm) View() string {
	var b strings.Builder
	line := func(i int, text string) {
		prefix := "  "
		if i == f.cursor {
			prefix = "> "
		}
		b.WriteString(prefix + text + "\n")
	}

	i := 0
	for _, c := range f.criteria {
		v := int(f.ratings[c])
		line(i, fmt.Sprintf("%-16s %s%s", c, strings.Repeat("★", v), dimStyle.Render(strings.Repeat("☆", maxRating-v))))
		i++
	}
	b.WriteString("\n")
	for _, name := range reward.BonusNames() {
		box := "[ ]"
		if f.bonuses[name] {
			box = okStyle.Render("[x]")
		}
		line(i, fmt.Sprintf("%s %s (+%.0f)", box, name, reward.BonusPoints(name)))
		i++
	}
	b.WriteString("\n")
	line(i, fmt.Sprintf("Complexity weight  ×%.1f", f.weight))
	return b.String()
}
