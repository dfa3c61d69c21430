// Package tui is the terminal review screen: open pull requests of one
// repository, their related issues, and the close and merge decisions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	perrors "github.com/pullquest/console/internal/errors"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/review"
	"github.com/pullquest/console/internal/reward"
)

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateSearch
	stateCloseConfirm
	stateMerge
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	detailHeadStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	labelStyle = lipgloss.NewStyle().Faint(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(62)

	closeModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 3).
			Width(58)
)

// — messages ————————————————————————————————————————————————————————————————

type pullsLoadedMsg struct{ err error }

type lookupDoneMsg struct{ err error }

type closedMsg struct {
	number int
	err    error
}

type mergedMsg struct {
	number int
	result reward.Result
	err    error
}

// — list item ———————————————————————————————————————————————————————————————

type pullItem struct {
	pr       models.PullRequest
	expanded bool
	now      time.Time
}

func (i pullItem) Title() string {
	marker := " "
	if i.expanded {
		marker = "▸"
	}
	return fmt.Sprintf("%s #%d %s", marker, i.pr.Number, i.pr.Title)
}

func (i pullItem) Description() string {
	return fmt.Sprintf("%s · %s", i.pr.User.Login, models.Age(i.pr.CreatedAt, i.now))
}

func (i pullItem) FilterValue() string { return i.pr.Title }

// — model ———————————————————————————————————————————————————————————————————

// Model is the bubbletea model of the review screen.
type Model struct {
	ctx  context.Context
	flow *review.Flow
	now  func() time.Time

	list    list.Model
	search  textinput.Model
	width   int
	height  int
	loading bool

	state    appState
	notice   string
	inputErr string
	merge    *feedbackForm
	busy     bool // close or merge call outstanding
}

// New creates the review screen for flow.
func New(ctx context.Context, flow *review.Flow) Model {
	delegate := list.NewDefaultDelegate()

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = flow.Owner() + "/" + flow.Repo()
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	ti := textinput.New()
	ti.Placeholder = "title or author"
	ti.CharLimit = 100

	return Model{
		ctx:     ctx,
		flow:    flow,
		now:     time.Now,
		list:    l,
		search:  ti,
		loading: true,
	}
}

// — commands ————————————————————————————————————————————————————————————————

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return pullsLoadedMsg{err: m.flow.Load(m.ctx)}
	}
}

func (m Model) lookupCmd(number int) tea.Cmd {
	return func() tea.Msg {
		return lookupDoneMsg{err: m.flow.LookupRelatedIssue(m.ctx, number)}
	}
}

func (m Model) closeCmd(number int) tea.Cmd {
	return func() tea.Msg {
		return closedMsg{number: number, err: m.flow.Close(m.ctx, number)}
	}
}

func (m Model) mergeCmd(number int, fb reward.Feedback) tea.Cmd {
	return func() tea.Msg {
		res, err := m.flow.Merge(m.ctx, number, fb)
		return mergedMsg{number: number, result: res, err: err}
	}
}

// buildItems rebuilds the list from the filtered pull requests.
func (m *Model) buildItems() {
	visible := m.flow.Visible()
	now := m.now()
	items := make([]list.Item, len(visible))
	for i, pr := range visible {
		items[i] = pullItem{pr: pr, expanded: m.flow.StateOf(pr.Number) == review.Expanded, now: now}
	}
	m.list.SetItems(items)
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		lw, lh := m.listDimensions()
		m.list.SetSize(lw, lh)
		return m, nil

	case pullsLoadedMsg:
		m.loading = false
		m.buildItems()
		return m, nil

	case lookupDoneMsg:
		return m, nil

	case closedMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = errStyle.Render("Close failed: " + perrors.UserMessage(msg.err))
			m.state = stateNormal
			return m, nil
		}
		m.state = stateNormal
		m.notice = okStyle.Render(fmt.Sprintf("Closed #%d", msg.number))
		m.loading = true
		return m, m.loadCmd()

	case mergedMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = ""
			m.inputErr = perrors.UserMessage(msg.err)
			return m, nil
		}
		m.state = stateNormal
		m.merge = nil
		m.inputErr = ""
		m.notice = okStyle.Render(fmt.Sprintf("Merged #%d · %.1f XP · %s", msg.number, msg.result.TotalXP, msg.result.Level))
		m.loading = true
		return m, m.loadCmd()
	}

	switch m.state {
	case stateSearch:
		return m.updateSearch(msg)
	case stateCloseConfirm:
		return m.updateCloseConfirm(msg)
	case stateMerge:
		return m.updateMerge(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.flow.Dispose()
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.loadCmd()
		case "/":
			m.state = stateSearch
			m.search.SetValue(m.flow.Search())
			m.search.Focus()
			return m, textinput.Blink
		case "enter", " ":
			if pr := m.highlighted(); pr != nil {
				if _, err := m.flow.Toggle(pr.Number); err != nil {
					m.notice = errStyle.Render(err.Error())
				}
				m.buildItems()
			}
			return m, nil
		case "i":
			if pr := m.highlighted(); pr != nil {
				return m, m.lookupCmd(pr.Number)
			}
			return m, nil
		case "x":
			m.flow.ClearRelatedIssue()
			return m, nil
		case "c":
			if pr, ok := m.flow.Selected(); ok {
				m.state = stateCloseConfirm
				m.inputErr = ""
				m.notice = dimStyle.Render(fmt.Sprintf("Close #%d?", pr.Number))
			}
			return m, nil
		case "m":
			if _, ok := m.flow.Selected(); ok {
				m.state = stateMerge
				m.inputErr = ""
				m.merge = newFeedbackForm()
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.state = stateNormal
			m.search.Blur()
			return m, nil
		case "enter":
			m.state = stateNormal
			m.search.Blur()
			m.flow.SetSearch(strings.TrimSpace(m.search.Value()))
			m.buildItems()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.flow.SetSearch(strings.TrimSpace(m.search.Value()))
	m.buildItems()
	return m, cmd
}

func (m Model) updateCloseConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "n", "N":
			if m.busy {
				return m, nil
			}
			m.state = stateNormal
			m.notice = ""
			return m, nil
		case "enter", "y", "Y":
			if m.busy {
				return m, nil
			}
			pr, ok := m.flow.Selected()
			if !ok {
				m.state = stateNormal
				return m, nil
			}
			m.busy = true
			m.notice = dimStyle.Render(fmt.Sprintf("Closing #%d...", pr.Number))
			return m, m.closeCmd(pr.Number)
		}
	}
	return m, nil
}

func (m Model) updateMerge(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.busy {
		return m, nil
	}
	switch key.String() {
	case "esc":
		m.state = stateNormal
		m.merge = nil
		m.inputErr = ""
		return m, nil
	case "enter":
		pr, ok := m.flow.Selected()
		if !ok {
			m.state = stateNormal
			m.merge = nil
			return m, nil
		}
		m.busy = true
		m.inputErr = ""
		m.notice = dimStyle.Render(fmt.Sprintf("Merging #%d...", pr.Number))
		return m, m.mergeCmd(pr.Number, m.merge.Feedback())
	case "up", "k":
		m.merge.move(-1)
	case "down", "j", "tab":
		m.merge.move(1)
	case "left", "h", "-":
		m.merge.adjust(-1)
	case "right", "l", "+":
		m.merge.adjust(1)
	case " ":
		m.merge.adjust(1)
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	if m.loading && len(m.flow.All()) == 0 {
		return lipgloss.NewStyle().Padding(1, 2).Render("Loading pull requests...")
	}

	if err := m.flow.LoadErr(); err != nil && len(m.flow.All()) == 0 {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			fmt.Sprintf("Error: %s\n\nPress r to retry, q to quit.", perrors.UserMessage(err)),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), m.renderDetail())
	base := lipgloss.JoinVertical(lipgloss.Left, body, m.renderHelp())

	switch m.state {
	case stateCloseConfirm:
		return m.renderCloseConfirmOver()
	case stateMerge:
		return m.renderMergeOver()
	}
	return base
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m Model) listDimensions() (width, height int) {
	return m.width * 2 / 5, m.height - 3
}

func (m Model) renderDetail() string {
	lw, _ := m.listDimensions()
	dw := m.width - lw
	dh := m.height - 3

	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(dw - 1).
		Height(dh)

	contentWidth := (dw - 1) - 3 - 2

	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	var b strings.Builder
	if pr, ok := m.flow.Selected(); ok {
		b.WriteString(detailHeadStyle.Render(fmt.Sprintf("#%d %s", pr.Number, pr.Title)) + "\n\n")
		b.WriteString(row("Author   ", pr.User.Login))
		b.WriteString(row("Opened   ", models.Age(pr.CreatedAt, m.now())))
		b.WriteString(row("Diff     ", fmt.Sprintf("+%d -%d in %d files", pr.Additions, pr.Deletions, pr.ChangedFiles)))
		b.WriteString(row("Comments ", fmt.Sprintf("%d", pr.Comments)))
		if pr.MergeableState != "" {
			b.WriteString(row("Mergeable", " "+pr.MergeableState))
		}
		if len(pr.Labels) > 0 {
			names := make([]string, len(pr.Labels))
			for i, l := range pr.Labels {
				names[i] = l.Name
			}
			b.WriteString(row("Labels   ", strings.Join(names, ", ")))
		}
		if review.HasPullQuestTag(pr.Body) {
			b.WriteString(row("Quest    ", okStyle.Render("PullQuest")))
		}
		if pr.Body != "" {
			b.WriteString("\n" + truncate(pr.Body, contentWidth*6) + "\n")
		}
	} else {
		b.WriteString(dimStyle.Render("Press enter to expand a pull request") + "\n")
	}

	b.WriteString("\n" + dimStyle.Render(strings.Repeat("─", max(contentWidth, 1))) + "\n\n")
	b.WriteString(m.renderRelated())

	if last, ok := m.flow.LastReward(); ok {
		b.WriteString("\n" + row("Last XP  ", fmt.Sprintf("%.1f (%s)", last.TotalXP, last.Level)))
	}
	if m.notice != "" {
		b.WriteString("\n" + m.notice + "\n")
	}
	return style.Render(b.String())
}

func (m Model) renderRelated() string {
	issue, err := m.flow.RelatedIssue()
	switch {
	case m.flow.LookupInFlight():
		return warnStyle.Render("Loading related issue...") + "\n"
	case err != nil:
		return errStyle.Render(perrors.UserMessage(err)) + "\n"
	case issue != nil:
		var b strings.Builder
		b.WriteString(boldStyle.Render(fmt.Sprintf("Related issue #%d", issue.Number)) + "\n")
		b.WriteString(issue.Title + "\n")
		if issue.State != "" {
			b.WriteString(dimStyle.Render(issue.State) + "\n")
		}
		return b.String()
	default:
		return dimStyle.Render("No related issue") + "\n"
	}
}

func (m Model) renderHelp() string {
	var text string
	switch m.state {
	case stateSearch:
		text = "Search: " + m.search.View() + "   Enter apply   Esc cancel"
	case stateCloseConfirm:
		text = "y/Enter confirm   n/Esc cancel"
	case stateMerge:
		text = "↑/↓ field   ←/→ adjust   space toggle   Enter merge   Esc cancel"
	default:
		text = "↑/↓ navigate   Enter expand   / search   i related issue   x clear   c close   m merge   r refresh   q quit"
	}
	sep := dimStyle.Render(strings.Repeat("─", max(m.width, 1)))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderCloseConfirmOver() string {
	pr, _ := m.flow.Selected()
	var b strings.Builder
	b.WriteString(errStyle.Render("Close Pull Request") + "\n\n")
	b.WriteString(labelStyle.Render("PR       ") + fmt.Sprintf("#%d %s", pr.Number, pr.Title) + "\n")
	b.WriteString(labelStyle.Render("Author   ") + pr.User.Login + "\n\n")
	b.WriteString("The pull request is closed without merging.\n")
	if m.busy {
		b.WriteString("\n" + dimStyle.Render("Closing..."))
	} else {
		b.WriteString("\n" + dimStyle.Render("y/Enter to confirm · Esc/n to cancel"))
	}

	modal := closeModalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) renderMergeOver() string {
	pr, _ := m.flow.Selected()
	var b strings.Builder
	b.WriteString(boldStyle.Render("Merge Feedback") + "\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("#%d %s", pr.Number, pr.Title)) + "\n\n")
	b.WriteString(m.merge.View())

	preview := reward.Calculate(m.merge.Feedback())
	b.WriteString(fmt.Sprintf("\nBase %.1f · Bonus %.0f · Total %.1f XP · %s\n",
		preview.BaseScore, preview.BonusScore, preview.TotalXP, preview.Level))
	if m.busy {
		b.WriteString("\n" + dimStyle.Render("Merging...") + "\n")
	}
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) highlighted() *models.PullRequest {
	item, ok := m.list.SelectedItem().(pullItem)
	if !ok {
		return nil
	}
	return &item.pr
}

func truncate(s string, n int) string {
	if n <= 1 || len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
