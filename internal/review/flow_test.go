package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/reward"
)

type fakeBackend struct {
	mu sync.Mutex

	pulls    []models.PullRequest
	pullsErr error

	issueErr    error
	issueCalls  []int
	issueGates  map[int]chan struct{}
	issueCalled chan int
}

func (f *fakeBackend) RepoPulls(_ context.Context, owner, repo string, perPage, page int) ([]models.PullRequest, error) {
	if f.pullsErr != nil {
		return nil, f.pullsErr
	}
	return f.pulls, nil
}

func (f *fakeBackend) IssueByNumber(_ context.Context, owner, repo string, number int) (*models.Issue, error) {
	f.mu.Lock()
	f.issueCalls = append(f.issueCalls, number)
	gate := f.issueGates[number]
	f.mu.Unlock()

	if f.issueCalled != nil {
		f.issueCalled <- number
	}
	if gate != nil {
		<-gate
	}
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return &models.Issue{Number: number, Title: "related"}, nil
}

type fakeHost struct {
	closed   []int
	merged   []int
	messages []string
	err      error
}

func (h *fakeHost) ClosePR(_ context.Context, owner, repo string, number int) error {
	if h.err != nil {
		return h.err
	}
	h.closed = append(h.closed, number)
	return nil
}

func (h *fakeHost) MergePR(_ context.Context, owner, repo string, number int, message string) error {
	if h.err != nil {
		return h.err
	}
	h.merged = append(h.merged, number)
	h.messages = append(h.messages, message)
	return nil
}

func samplePulls() []models.PullRequest {
	return []models.PullRequest{
		{Number: 1, Title: "Fix login redirect", Body: "Closes #7", User: models.Account{Login: "alice"}},
		{Number: 2, Title: "Add dark mode", Body: "Part of #8 and #9 #PullQuest", User: models.Account{Login: "Bob"}},
		{Number: 3, Title: "Bump deps", Body: "no reference here", User: models.Account{Login: "renovate"}},
	}
}

func newFlow(t *testing.T, b *fakeBackend, h *fakeHost) *Flow {
	t.Helper()
	f := New("acme", "widgets", b, h, metrics.New(), zerolog.Nop())
	require.NoError(t, f.Load(context.Background()))
	return f
}

func TestLoad_ReplacesList(t *testing.T) {
	b := &fakeBackend{pulls: samplePulls()}
	f := newFlow(t, b, &fakeHost{})
	assert.Len(t, f.All(), 3)

	b.pulls = samplePulls()[:1]
	require.NoError(t, f.Load(context.Background()))
	assert.Len(t, f.All(), 1)
	assert.False(t, f.Loading())
}

func TestLoad_Failure(t *testing.T) {
	b := &fakeBackend{pullsErr: &perrors.APIError{Service: "backend", StatusCode: 500, Message: "Failed to load pull requests"}}
	f := New("acme", "widgets", b, &fakeHost{}, nil, zerolog.Nop())

	err := f.Load(context.Background())
	assert.ErrorIs(t, err, perrors.ErrFetchFailed)

	var fErr *perrors.FetchError
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, SectionPulls, fErr.Section)
	assert.Equal(t, "Failed to load pull requests", perrors.UserMessage(err))
	assert.Equal(t, err, f.LoadErr())
}

func TestVisible_FiltersLocally(t *testing.T) {
	f := newFlow(t, &fakeBackend{pulls: samplePulls()}, &fakeHost{})

	f.SetSearch("BOB")
	vis := f.Visible()
	require.Len(t, vis, 1)
	assert.Equal(t, 2, vis[0].Number)

	f.SetSearch("fix")
	vis = f.Visible()
	require.Len(t, vis, 1)
	assert.Equal(t, 1, vis[0].Number)

	f.SetSearch("")
	assert.Len(t, f.Visible(), 3)

	f.SetSearch("nothing matches")
	assert.Empty(t, f.Visible())
}

func TestToggle_MutuallyExclusive(t *testing.T) {
	f := newFlow(t, &fakeBackend{pulls: samplePulls()}, &fakeHost{})

	st, err := f.Toggle(1)
	require.NoError(t, err)
	assert.Equal(t, Expanded, st)

	st, err = f.Toggle(2)
	require.NoError(t, err)
	assert.Equal(t, Expanded, st)
	assert.Equal(t, Collapsed, f.StateOf(1))
	assert.Equal(t, Expanded, f.StateOf(2))

	st, err = f.Toggle(2)
	require.NoError(t, err)
	assert.Equal(t, Collapsed, st)
	_, ok := f.Selected()
	assert.False(t, ok)

	_, err = f.Toggle(42)
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestIssueReference(t *testing.T) {
	tests := []struct {
		body string
		want int
		ok   bool
	}{
		{body: "Closes #7", want: 7, ok: true},
		{body: "See #12 and #13", want: 12, ok: true},
		{body: "#PullQuest only", ok: false},
		{body: "", ok: false},
		{body: "issue 7", ok: false},
	}
	for _, tt := range tests {
		got, ok := IssueReference(tt.body)
		assert.Equal(t, tt.ok, ok, tt.body)
		assert.Equal(t, tt.want, got, tt.body)
	}
	assert.True(t, HasPullQuestTag("Part of #8 #PullQuest"))
	assert.False(t, HasPullQuestTag("#pullquest"))
}

func TestLookupRelatedIssue(t *testing.T) {
	b := &fakeBackend{pulls: samplePulls()}
	f := newFlow(t, b, &fakeHost{})

	require.NoError(t, f.LookupRelatedIssue(context.Background(), 2))
	issue, err := f.RelatedIssue()
	require.NoError(t, err)
	require.NotNil(t, issue)
	assert.Equal(t, 8, issue.Number)
	assert.Equal(t, Collapsed, f.StateOf(2))
}

func TestLookupRelatedIssue_NoReferenceNoCall(t *testing.T) {
	b := &fakeBackend{pulls: samplePulls()}
	f := newFlow(t, b, &fakeHost{})

	require.NoError(t, f.LookupRelatedIssue(context.Background(), 1))
	require.NoError(t, f.LookupRelatedIssue(context.Background(), 3))

	assert.Equal(t, []int{7}, b.issueCalls)
	issue, _ := f.RelatedIssue()
	require.NotNil(t, issue)
	assert.Equal(t, 7, issue.Number)
}

func TestLookupRelatedIssue_Failure(t *testing.T) {
	b := &fakeBackend{pulls: samplePulls(), issueErr: errors.New("dial tcp: refused")}
	f := newFlow(t, b, &fakeHost{})

	err := f.LookupRelatedIssue(context.Background(), 1)
	assert.ErrorIs(t, err, perrors.ErrFetchFailed)

	issue, slotErr := f.RelatedIssue()
	assert.Nil(t, issue)
	var fErr *perrors.FetchError
	require.ErrorAs(t, slotErr, &fErr)
	assert.Equal(t, SectionIssue, fErr.Section)
	assert.Equal(t, "Issue fetch failed", perrors.UserMessage(slotErr))

	f.ClearRelatedIssue()
	_, slotErr = f.RelatedIssue()
	assert.NoError(t, slotErr)
}

// A is requested before B, B's response arrives first and A's last.
func TestLookupRelatedIssue_LastArrivalWins(t *testing.T) {
	gateA := make(chan struct{})
	gateB := make(chan struct{})
	b := &fakeBackend{
		pulls:       samplePulls(),
		issueGates:  map[int]chan struct{}{7: gateA, 8: gateB},
		issueCalled: make(chan int, 2),
	}
	f := newFlow(t, b, &fakeHost{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.LookupRelatedIssue(context.Background(), 1))
	}()
	assert.Equal(t, 7, <-b.issueCalled)

	doneB := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(doneB)
		assert.NoError(t, f.LookupRelatedIssue(context.Background(), 2))
	}()
	assert.Equal(t, 8, <-b.issueCalled)
	assert.True(t, f.LookupInFlight())

	close(gateB)
	<-doneB
	issue, _ := f.RelatedIssue()
	require.NotNil(t, issue)
	assert.Equal(t, 8, issue.Number)

	close(gateA)
	wg.Wait()
	issue, _ = f.RelatedIssue()
	require.NotNil(t, issue)
	assert.Equal(t, 7, issue.Number)
	assert.False(t, f.LookupInFlight())
}

func TestDispose_DiscardsLateResults(t *testing.T) {
	gate := make(chan struct{})
	b := &fakeBackend{
		pulls:       samplePulls(),
		issueGates:  map[int]chan struct{}{7: gate},
		issueCalled: make(chan int, 1),
	}
	f := newFlow(t, b, &fakeHost{})

	done := make(chan error, 1)
	go func() { done <- f.LookupRelatedIssue(context.Background(), 1) }()
	<-b.issueCalled

	f.Dispose()
	close(gate)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lookup did not return")
	}
	issue, err := f.RelatedIssue()
	assert.Nil(t, issue)
	assert.NoError(t, err)
}

func TestClose_RequiresExpanded(t *testing.T) {
	h := &fakeHost{}
	f := newFlow(t, &fakeBackend{pulls: samplePulls()}, h)

	err := f.Close(context.Background(), 1)
	assert.ErrorIs(t, err, perrors.ErrNotSelected)
	assert.Empty(t, h.closed)

	_, err = f.Toggle(1)
	require.NoError(t, err)
	require.NoError(t, f.Close(context.Background(), 1))
	assert.Equal(t, []int{1}, h.closed)
	assert.Len(t, f.All(), 3)
}

func TestMerge_ComputesRewardThenMerges(t *testing.T) {
	h := &fakeHost{}
	f := newFlow(t, &fakeBackend{pulls: samplePulls()}, h)
	_, err := f.Toggle(2)
	require.NoError(t, err)

	_, ok := f.LastReward()
	assert.False(t, ok)

	res, err := f.Merge(context.Background(), 2, reward.Feedback{
		Ratings: map[string]float64{"a": 5, "b": 5},
		Bonuses: map[string]bool{reward.BonusBountyBacked: true},
	})
	require.NoError(t, err)
	assert.Equal(t, reward.LevelPro, res.Level)
	assert.Equal(t, 20.0, res.TotalXP)
	assert.Equal(t, []int{2}, h.merged)
	assert.Contains(t, h.messages[0], "Pro")

	last, ok := f.LastReward()
	require.True(t, ok)
	assert.Equal(t, res, last)
}

func TestMerge_Failure(t *testing.T) {
	h := &fakeHost{err: &perrors.APIError{Service: "github", StatusCode: 405, Message: "Pull Request is not mergeable"}}
	f := newFlow(t, &fakeBackend{pulls: samplePulls()}, h)

	_, err := f.Merge(context.Background(), 1, reward.Feedback{})
	assert.ErrorIs(t, err, perrors.ErrNotSelected)

	_, err = f.Toggle(1)
	require.NoError(t, err)
	res, err := f.Merge(context.Background(), 1, reward.Feedback{Ratings: map[string]float64{"a": 3}})
	require.Error(t, err)
	assert.Equal(t, reward.LevelBeginner, res.Level)
	assert.Equal(t, "Pull Request is not mergeable", perrors.UserMessage(err))

	_, ok := f.LastReward()
	assert.False(t, ok)
}
