package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/review"
	"github.com/pullquest/console/internal/reward"
)

type stubBackend struct{ pulls []models.PullRequest }

func (s *stubBackend) RepoPulls(context.Context, string, string, int, int) ([]models.PullRequest, error) {
	return s.pulls, nil
}

func (s *stubBackend) IssueByNumber(_ context.Context, _, _ string, number int) (*models.Issue, error) {
	return &models.Issue{Number: number, Title: "Login loops forever"}, nil
}

type stubHost struct {
	closed []int
	merged []int
}

func (h *stubHost) ClosePR(_ context.Context, _, _ string, number int) error {
	h.closed = append(h.closed, number)
	return nil
}

func (h *stubHost) MergePR(_ context.Context, _, _ string, number int, _ string) error {
	h.merged = append(h.merged, number)
	return nil
}

func keys(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// send applies msg and runs any returned command once, feeding its
// message back, as the bubbletea runtime would.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			if _, quit := out.(tea.QuitMsg); quit {
				return m
			}
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func setup(t *testing.T) (Model, *review.Flow, *stubHost) {
	t.Helper()
	b := &stubBackend{pulls: []models.PullRequest{
		{Number: 1, Title: "Fix login redirect", Body: "Fixes #7", User: models.Account{Login: "alice"}},
		{Number: 2, Title: "Add dark mode", Body: "#PullQuest", User: models.Account{Login: "bob"}},
	}}
	h := &stubHost{}
	flow := review.New("acme", "widgets", b, h, nil, zerolog.Nop())
	m := New(context.Background(), flow)

	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = send(t, m, m.Init()())
	require.False(t, m.loading)
	require.Len(t, m.list.Items(), 2)
	return m, flow, h
}

func TestReview_SearchFiltersList(t *testing.T) {
	m, flow, _ := setup(t)

	m = send(t, m, keys("/"))
	assert.Equal(t, stateSearch, m.state)
	m = send(t, m, keys("bob"))
	m = send(t, m, keys("enter"))

	assert.Equal(t, stateNormal, m.state)
	assert.Equal(t, "bob", flow.Search())
	require.Len(t, m.list.Items(), 1)
	assert.Equal(t, 2, m.list.Items()[0].(pullItem).pr.Number)
}

func TestReview_ToggleAndLookup(t *testing.T) {
	m, flow, _ := setup(t)

	m = send(t, m, keys("enter"))
	assert.Equal(t, review.Expanded, flow.StateOf(1))
	assert.True(t, m.list.Items()[0].(pullItem).expanded)

	m = send(t, m, keys("i"))
	issue, err := flow.RelatedIssue()
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, 7, issue.Number)
	assert.Contains(t, m.View(), "Related issue #7")

	m = send(t, m, keys("enter"))
	assert.Equal(t, review.Collapsed, flow.StateOf(1))
}

func TestReview_CloseRequiresConfirmation(t *testing.T) {
	m, _, h := setup(t)

	m = send(t, m, keys("c"))
	assert.Equal(t, stateNormal, m.state)

	m = send(t, m, keys("enter"))
	m = send(t, m, keys("c"))
	assert.Equal(t, stateCloseConfirm, m.state)
	m = send(t, m, keys("n"))
	assert.Empty(t, h.closed)

	m = send(t, m, keys("c"))
	m = send(t, m, keys("y"))
	assert.Equal(t, []int{1}, h.closed)
	assert.Equal(t, stateNormal, m.state)
}

func TestReview_MergeWithFeedback(t *testing.T) {
	m, flow, h := setup(t)

	m = send(t, m, keys("down"))
	m = send(t, m, keys("enter"))
	require.Equal(t, review.Expanded, flow.StateOf(2))

	m = send(t, m, keys("m"))
	require.Equal(t, stateMerge, m.state)

	// Rate the first two criteria 5 each, then tick the bounty bonus.
	for i := 0; i < 5; i++ {
		m = send(t, m, keys("right"))
	}
	m = send(t, m, keys("down"))
	for i := 0; i < 5; i++ {
		m = send(t, m, keys("right"))
	}
	for i := 0; i < len(reward.DefaultCriteria)-1; i++ {
		m = send(t, m, keys("down"))
	}
	m = send(t, m, keys(" "))
	assert.True(t, m.merge.bonuses[reward.BonusBountyBacked])
	assert.Contains(t, m.View(), "Merge Feedback")

	m = send(t, m, keys("enter"))
	assert.Equal(t, []int{2}, h.merged)
	assert.Equal(t, stateNormal, m.state)

	last, ok := flow.LastReward()
	require.True(t, ok)
	assert.Equal(t, 20.0, last.TotalXP)
	assert.Equal(t, reward.LevelPro, last.Level)
}

func TestReview_MergeCancelled(t *testing.T) {
	m, _, h := setup(t)

	m = send(t, m, keys("enter"))
	m = send(t, m, keys("m"))
	m = send(t, m, keys("esc"))
	assert.Equal(t, stateNormal, m.state)
	assert.Nil(t, m.merge)
	assert.Empty(t, h.merged)
}

func TestFeedbackForm_Bounds(t *testing.T) {
	f := newFeedbackForm()
	f.adjust(-1)
	assert.Zero(t, f.ratings[reward.DefaultCriteria[0]])
	for i := 0; i < 10; i++ {
		f.adjust(1)
	}
	assert.Equal(t, float64(maxRating), f.ratings[reward.DefaultCriteria[0]])

	f.move(-1)
	for i := 0; i < 10; i++ {
		f.adjust(1)
	}
	assert.Equal(t, float64(maxWeight), *f.Feedback().ComplexityWeight)
}

// press applies msg without running the returned command.
func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestReview_MergeIgnoresRepeatWhileBusy(t *testing.T) {
	m, _, h := setup(t)

	m = send(t, m, keys("enter"))
	m = send(t, m, keys("m"))
	m = send(t, m, keys("right"))

	m, first := press(t, m, keys("enter"))
	require.NotNil(t, first)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "Merging...")

	m, second := press(t, m, keys("enter"))
	assert.Nil(t, second)
	m, _ = press(t, m, keys("esc"))
	assert.Equal(t, stateMerge, m.state)

	next, _ := m.Update(first())
	m = next.(Model)
	assert.Equal(t, []int{1}, h.merged)
	assert.False(t, m.busy)
	assert.Equal(t, stateNormal, m.state)
}

func TestReview_CloseIgnoresRepeatWhileBusy(t *testing.T) {
	m, _, h := setup(t)

	m = send(t, m, keys("enter"))
	m = send(t, m, keys("c"))
	require.Equal(t, stateCloseConfirm, m.state)

	m, first := press(t, m, keys("y"))
	require.NotNil(t, first)
	assert.Contains(t, m.View(), "Closing...")

	m, second := press(t, m, keys("y"))
	assert.Nil(t, second)
	m, second = press(t, m, keys("enter"))
	assert.Nil(t, second)

	next, _ := m.Update(first())
	m = next.(Model)
	assert.Equal(t, []int{1}, h.closed)
	assert.False(t, m.busy)
	assert.Equal(t, stateNormal, m.state)
}
