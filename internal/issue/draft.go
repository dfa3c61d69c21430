package issue

import (
	"fmt"
	"strings"

	perrors "github.com/pullquest/console/internal/errors"
)

// Stake bounds, inclusive.
const (
	MinStake = 15
	MaxStake = 30
)

// Draft is an issue being composed by a maintainer. It is consumed by one
// submission and then discarded.
type Draft struct {
	Owner     string
	Repo      string
	Title     string
	Body      string
	Labels    []string
	Assignees []string
	Milestone string
	Stake     int
}

// NewDraft starts an empty draft for owner/repo at the minimum stake.
func NewDraft(owner, repo string) *Draft {
	return &Draft{Owner: owner, Repo: repo, Stake: MinStake}
}

// ClampStake pulls v to the nearest bound when it is out of range.
func ClampStake(v int) int {
	switch {
	case v < MinStake:
		return MinStake
	case v > MaxStake:
		return MaxStake
	default:
		return v
	}
}

// SetStake stores the clamped value and reports whether clamping changed
// the input, so the caller can re-display it.
func (d *Draft) SetStake(v int) (int, bool) {
	d.Stake = ClampStake(v)
	return d.Stake, d.Stake != v
}

// ParseAssignees splits comma-separated input, trimming blanks away.
func ParseAssignees(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetAssignees replaces the assignees from comma-separated input.
func (d *Draft) SetAssignees(raw string) {
	d.Assignees = ParseAssignees(raw)
}

// ToggleLabel adds name if absent and removes it otherwise. It reports
// whether the label is selected afterwards.
func (d *Draft) ToggleLabel(name string) bool {
	for i, l := range d.Labels {
		if l == name {
			d.Labels = append(d.Labels[:i:i], d.Labels[i+1:]...)
			return false
		}
	}
	d.Labels = append(d.Labels, name)
	return true
}

// HasLabel reports whether name is selected.
func (d *Draft) HasLabel(name string) bool {
	for _, l := range d.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// Validate checks the draft locally before any network call.
func (d *Draft) Validate() error {
	if d.Owner == "" || d.Repo == "" {
		return &perrors.ValidationError{Field: "repository", Message: "Missing repository parameters."}
	}
	if strings.TrimSpace(d.Title) == "" {
		return &perrors.ValidationError{Field: "title", Message: "Title is required"}
	}
	if d.Stake < MinStake || d.Stake > MaxStake {
		return &perrors.ValidationError{
			Field:   "stake",
			Message: fmt.Sprintf("You must stake between %d and %d coins.", MinStake, MaxStake),
		}
	}
	return nil
}
