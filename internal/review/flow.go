// Package review drives the open pull-request list of one repository and
// the close and merge decisions taken on it.
package review

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/metrics"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/reward"
)

// Sections of the view that can fail independently.
const (
	SectionPulls = "pulls"
	SectionIssue = "issue"
)

// PullQuestTag marks pull requests opened for a staked issue.
const PullQuestTag = "#PullQuest"

var issueRef = regexp.MustCompile(`#(\d+)`)

// State is the per-item selection state.
type State int

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

// Backend lists pull requests and resolves issue references.
type Backend interface {
	RepoPulls(ctx context.Context, owner, repo string, perPage, page int) ([]models.PullRequest, error)
	IssueByNumber(ctx context.Context, owner, repo string, number int) (*models.Issue, error)
}

// CodeHost carries out close and merge decisions.
type CodeHost interface {
	ClosePR(ctx context.Context, owner, repo string, number int) error
	MergePR(ctx context.Context, owner, repo string, number int, message string) error
}

// Flow is the review screen state for one repository. Network calls are
// made without holding the lock so lookups can overlap; their results are
// applied in arrival order.
type Flow struct {
	owner   string
	repo    string
	perPage int
	backend Backend
	host    CodeHost
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu         sync.RWMutex
	pulls      []models.PullRequest
	loading    bool
	loadErr    error
	search     string
	selected   int
	related    *models.Issue
	relatedErr error
	lookups    int
	lastReward *reward.Result
	disposed   bool
}

// New creates the review flow for owner/repo.
func New(owner, repo string, b Backend, host CodeHost, m *metrics.Metrics, logger zerolog.Logger) *Flow {
	return &Flow{
		owner:   owner,
		repo:    repo,
		perPage: 30,
		backend: b,
		host:    host,
		metrics: m,
		logger:  logger.With().Str("component", "review").Str("repo", owner+"/"+repo).Logger(),
	}
}

// SetPerPage overrides the listing page size.
func (f *Flow) SetPerPage(n int) {
	if n > 0 {
		f.perPage = n
	}
}

// Owner returns the repository owner.
func (f *Flow) Owner() string { return f.owner }

// Repo returns the repository name.
func (f *Flow) Repo() string { return f.repo }

// Load fetches the first page of open pull requests and replaces the list.
func (f *Flow) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loading = true
	f.mu.Unlock()

	prs, err := f.backend.RepoPulls(ctx, f.owner, f.repo, f.perPage, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if f.disposed {
		return nil
	}
	if err != nil {
		f.loadErr = fetchError(SectionPulls, err, "Unknown error")
		f.logger.Error().Err(err).Msg("loading pull requests failed")
		return f.loadErr
	}

	f.pulls = prs
	f.loadErr = nil
	if f.selected != 0 && f.indexOf(f.selected) < 0 {
		f.selected = 0
	}
	f.logger.Debug().Int("count", len(prs)).Msg("pull requests loaded")
	return nil
}

// Loading reports whether a list fetch is running.
func (f *Flow) Loading() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loading
}

// LoadErr returns the last listing failure, if any.
func (f *Flow) LoadErr() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loadErr
}

// SetSearch sets the local filter term.
func (f *Flow) SetSearch(term string) {
	f.mu.Lock()
	f.search = term
	f.mu.Unlock()
}

// Search returns the filter term.
func (f *Flow) Search() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.search
}

// Visible returns the fetched pull requests matching the search term.
func (f *Flow) Visible() []models.PullRequest {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]models.PullRequest, 0, len(f.pulls))
	for _, pr := range f.pulls {
		if pr.Matches(f.search) {
			out = append(out, pr)
		}
	}
	return out
}

// All returns every fetched pull request.
func (f *Flow) All() []models.PullRequest {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.PullRequest(nil), f.pulls...)
}

// Toggle expands number, collapsing any other item, or collapses it when
// it is already expanded.
func (f *Flow) Toggle(number int) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexOf(number) < 0 {
		return Collapsed, fmt.Errorf("pull request #%d: %w", number, perrors.ErrNotFound)
	}
	if f.selected == number {
		f.selected = 0
		return Collapsed, nil
	}
	f.selected = number
	return Expanded, nil
}

// StateOf returns the selection state of number.
func (f *Flow) StateOf(number int) State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if number != 0 && f.selected == number {
		return Expanded
	}
	return Collapsed
}

// Selected returns the expanded pull request, if any.
func (f *Flow) Selected() (models.PullRequest, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i := f.indexOf(f.selected); i >= 0 {
		return f.pulls[i], true
	}
	return models.PullRequest{}, false
}

// IssueReference returns the first #<number> in body.
func IssueReference(body string) (int, bool) {
	m := issueRef.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// HasPullQuestTag reports whether body carries the PullQuest marker.
func HasPullQuestTag(body string) bool {
	return strings.Contains(body, PullQuestTag)
}

// LookupRelatedIssue fetches the issue referenced by a pull request's body
// into the shared related-issue slot. Bodies without a reference make no
// call. Overlapping lookups are not cancelled; whichever response arrives
// last is the one displayed.
func (f *Flow) LookupRelatedIssue(ctx context.Context, number int) error {
	f.mu.Lock()
	i := f.indexOf(number)
	if i < 0 {
		f.mu.Unlock()
		return fmt.Errorf("pull request #%d: %w", number, perrors.ErrNotFound)
	}
	ref, ok := IssueReference(f.pulls[i].Body)
	if !ok {
		f.mu.Unlock()
		f.metrics.RecordLookup("none")
		return nil
	}
	f.related = nil
	f.relatedErr = nil
	f.lookups++
	f.mu.Unlock()

	issue, err := f.backend.IssueByNumber(ctx, f.owner, f.repo, ref)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups--
	if f.disposed {
		f.metrics.RecordLookup("discarded")
		return nil
	}
	if err != nil {
		f.related = nil
		f.relatedErr = fetchError(SectionIssue, err, "Issue fetch failed")
		f.metrics.RecordLookup("error")
		f.logger.Warn().Err(err).Int("pr", number).Int("issue", ref).Msg("related issue lookup failed")
		return f.relatedErr
	}
	f.related = issue
	f.relatedErr = nil
	f.metrics.RecordLookup("found")
	return nil
}

// RelatedIssue returns the displayed related issue and the lookup error
// slot.
func (f *Flow) RelatedIssue() (*models.Issue, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.related, f.relatedErr
}

// LookupInFlight reports whether any related-issue lookup is running.
func (f *Flow) LookupInFlight() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lookups > 0
}

// ClearRelatedIssue empties the related-issue slot.
func (f *Flow) ClearRelatedIssue() {
	f.mu.Lock()
	f.related = nil
	f.relatedErr = nil
	f.mu.Unlock()
}

// Close closes the expanded pull request upstream. The local list is left
// as is until the next Load.
func (f *Flow) Close(ctx context.Context, number int) error {
	if err := f.requireExpanded(number); err != nil {
		return err
	}
	if err := f.host.ClosePR(ctx, f.owner, f.repo, number); err != nil {
		f.logger.Error().Err(err).Int("pr", number).Msg("closing pull request failed")
		return err
	}
	f.logger.Info().Int("pr", number).Msg("pull request closed")
	return nil
}

// Merge computes the reward for fb and then merges the expanded pull
// request. The feedback is not sent anywhere.
func (f *Flow) Merge(ctx context.Context, number int, fb reward.Feedback) (reward.Result, error) {
	if err := f.requireExpanded(number); err != nil {
		return reward.Result{}, err
	}

	result := reward.Calculate(fb)
	msg := fmt.Sprintf("Merged with pullquest: %s (%.1f XP)", result.Level, result.TotalXP)
	if err := f.host.MergePR(ctx, f.owner, f.repo, number, msg); err != nil {
		f.logger.Error().Err(err).Int("pr", number).Msg("merging pull request failed")
		return result, err
	}

	f.metrics.RecordReward(string(result.Level))
	f.logger.Info().
		Int("pr", number).
		Float64("xp", result.TotalXP).
		Str("level", string(result.Level)).
		Msg("pull request merged")

	f.mu.Lock()
	if !f.disposed {
		f.lastReward = &result
	}
	f.mu.Unlock()
	return result, nil
}

// LastReward returns the reward of the last successful merge.
func (f *Flow) LastReward() (reward.Result, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastReward == nil {
		return reward.Result{}, false
	}
	return *f.lastReward, true
}

// Dispose detaches the flow from its view. Results arriving afterwards are
// discarded; requests already sent are not aborted.
func (f *Flow) Dispose() {
	f.mu.Lock()
	f.disposed = true
	f.mu.Unlock()
}

func (f *Flow) requireExpanded(number int) error {
	if f.StateOf(number) != Expanded {
		return fmt.Errorf("pull request #%d: %w", number, perrors.ErrNotSelected)
	}
	return nil
}

func (f *Flow) indexOf(number int) int {
	for i, pr := range f.pulls {
		if pr.Number == number {
			return i
		}
	}
	return -1
}

func fetchError(section string, err error, fallback string) *perrors.FetchError {
	msg := fallback
	var apiErr *perrors.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	} else if section == SectionPulls {
		msg = err.Error()
	}
	return &perrors.FetchError{Section: section, Message: msg, Err: err}
}
