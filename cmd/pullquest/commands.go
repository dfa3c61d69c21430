package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pullquest/console/internal/auth"
	"github.com/pullquest/console/internal/config"
	perrors "github.com/pullquest/console/internal/errors"
	ghclient "github.com/pullquest/console/internal/github"
	"github.com/pullquest/console/internal/issue"
	"github.com/pullquest/console/internal/models"
	"github.com/pullquest/console/internal/review"
	"github.com/pullquest/console/internal/reward"
	"github.com/pullquest/console/internal/status"
	"github.com/pullquest/console/internal/tui"
)

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	token := fs.String("token", os.Getenv("PULLQUEST_TOKEN"), "bearer token issued by the login flow")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}

	sess, err := a.session.Login(ctx, *token, *email)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", displayName(sess), sess.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out. Next:", a.nav.last)
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	sess, ok := a.session.Current()
	if !ok {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("User      %s\n", sess.ID)
	fmt.Printf("Email     %s\n", sess.Email)
	fmt.Printf("GitHub    %s\n", sess.GitHubUsername)
	fmt.Printf("Role      %s\n", sess.Role)
	fmt.Println()
	for _, r := range auth.DefaultRoutes {
		d := a.gate.AdmitPath(ctx, r.Prefix)
		verdict := "admitted"
		if !d.Admitted {
			verdict = "redirect " + d.Redirect
		}
		fmt.Printf("%-14s %s\n", r.Prefix, verdict)
	}
	return nil
}

func runNewIssue(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("new-issue", flag.ContinueOnError)
	owner := fs.String("owner", "", "repository owner")
	repo := fs.String("repo", "", "repository name")
	title := fs.String("title", "", "issue title")
	body := fs.String("body", "", "issue body")
	labels := fs.String("labels", "", "comma-separated preset labels")
	assignees := fs.String("assignees", "", "comma-separated GitHub logins")
	milestone := fs.String("milestone", "", "milestone")
	stake := fs.Int("stake", issue.MinStake, fmt.Sprintf("coins to stake (%d-%d)", issue.MinStake, issue.MaxStake))
	if err := fs.Parse(args); err != nil {
		return err
	}

	if d := a.gate.Admit(ctx, models.RoleMaintainer); !d.Admitted {
		a.nav.Navigate(d.Redirect)
		return perrors.ErrNotPermitted
	}

	presets, err := config.LoadLabelPresets(a.cfg.LabelsFile)
	if err != nil {
		return err
	}

	draft := issue.NewDraft(*owner, *repo)
	draft.Title = *title
	draft.Body = *body
	draft.Milestone = *milestone
	draft.SetAssignees(*assignees)
	for _, l := range issue.ParseAssignees(*labels) {
		if !isPreset(presets, l) {
			return fmt.Errorf("unknown label %q, choose from: %s", l, strings.Join(config.PresetNames(presets), ", "))
		}
		draft.ToggleLabel(l)
	}
	if v, changed := draft.SetStake(*stake); changed {
		fmt.Fprintf(os.Stderr, "Stake adjusted to %d coins (allowed %d-%d).\n", v, issue.MinStake, issue.MaxStake)
	}

	out, err := a.issues.Submit(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Printf("Created and registered issue #%d in %s/%s with a stake of %d coins.\n", out.IssueNumber, *owner, *repo, draft.Stake)
	return nil
}

func runPending(ctx context.Context, a *app, _ []string) error {
	items, err := a.issues.Pending(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No pending registrations.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPOSITORY\tISSUE\tCREATED")
	for _, p := range items {
		fmt.Fprintf(w, "%s\t%s/%s\t#%d\t%s\n", p.ID, p.Owner, p.Repo, p.IssueNumber, p.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runResumeIngest(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("resume-ingest", flag.ContinueOnError)
	id := fs.String("id", "", "pending registration ID (see: pullquest pending)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}
	if d := a.gate.Admit(ctx, models.RoleMaintainer); !d.Admitted {
		a.nav.Navigate(d.Redirect)
		return perrors.ErrNotPermitted
	}

	p, err := a.issues.ResumeIngest(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("Registered issue #%d in %s/%s.\n", p.IssueNumber, p.Owner, p.Repo)
	return nil
}

func runReview(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	owner := fs.String("owner", "", "repository owner")
	repo := fs.String("repo", "", "repository name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" || *repo == "" {
		return &perrors.ValidationError{Field: "repository", Message: "Missing repository parameters."}
	}

	if d := a.gate.Admit(ctx, models.RoleMaintainer); !d.Admitted {
		a.nav.Navigate(d.Redirect)
		return perrors.ErrNotPermitted
	}
	sess, ok := a.session.Current()
	if !ok {
		return perrors.ErrNotAuthenticated
	}

	gh, err := ghclient.NewClient(sess.AccessToken, a.cfg.GitHubAPIURL, a.cfg.HTTPTimeout, a.metrics, a.logger)
	if err != nil {
		return err
	}
	flow := review.New(*owner, *repo, a.backend, gh, a.metrics, a.logger)
	flow.SetPerPage(a.cfg.PerPage)

	p := tea.NewProgram(tui.New(ctx, flow), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	flow.Dispose()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// ratingFlag collects repeated -rating name=value pairs.
type ratingFlag map[string]float64

func (r ratingFlag) String() string { return fmt.Sprint(map[string]float64(r)) }

func (r ratingFlag) Set(v string) error {
	name, val, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("rating %q must be name=value", v)
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("rating %q: %w", v, err)
	}
	r[strings.TrimSpace(name)] = f
	return nil
}

// bonusFlag collects repeated -bonus names.
type bonusFlag map[string]bool

func (b bonusFlag) String() string { return fmt.Sprint(map[string]bool(b)) }

func (b bonusFlag) Set(v string) error {
	b[strings.TrimSpace(v)] = true
	return nil
}

func runXP(_ context.Context, _ *app, args []string) error {
	fb, err := parseFeedback(args)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(reward.Calculate(fb))
}

// parseFeedback reads xp flags. The weight is only set when -weight is
// given, so an explicit 0 is kept.
func parseFeedback(args []string) (reward.Feedback, error) {
	fs := flag.NewFlagSet("xp", flag.ContinueOnError)
	ratings := ratingFlag{}
	bonuses := bonusFlag{}
	fs.Var(ratings, "rating", "criterion rating as name=value (repeatable)")
	fs.Var(bonuses, "bonus", "bonus name (repeatable): "+strings.Join(reward.BonusNames(), "; "))
	weight := fs.Float64("weight", 1, "complexity weight")
	if err := fs.Parse(args); err != nil {
		return reward.Feedback{}, err
	}

	fb := reward.Feedback{Ratings: ratings, Bonuses: bonuses}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "weight" {
			fb.ComplexityWeight = weight
		}
	})
	return fb, nil
}

func runRepos(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("repos", flag.ContinueOnError)
	user := fs.String("user", currentUsername(a), "GitHub username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repos, err := a.dir.Repos(ctx, *user)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tLANGUAGE\tSTARS\tOPEN ISSUES\tDESCRIPTION")
	for _, r := range repos {
		fmt.Fprintf(w, "%s/%s\t%s\t%d\t%d\t%s\n", r.Owner.Login, r.Name, r.Language, r.StargazersCount, r.OpenIssuesCount, r.Description)
	}
	return w.Flush()
}

func runOrgs(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("orgs", flag.ContinueOnError)
	user := fs.String("user", currentUsername(a), "GitHub username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	orgs, err := a.dir.Orgs(ctx, *user)
	if err != nil {
		return err
	}
	for _, o := range orgs {
		fmt.Println(o.Login)
	}
	return nil
}

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	addr := fs.String("addr", a.cfg.StatusAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := status.NewServer(*addr, a.session, a.issues, a.checker, a.metrics, a.logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return srv.Shutdown()
	}
}

func currentUsername(a *app) string {
	if sess, ok := a.session.Current(); ok {
		return sess.GitHubUsername
	}
	return ""
}

func displayName(s models.Session) string {
	if s.GitHubUsername != "" {
		return s.GitHubUsername
	}
	return s.Email
}

func isPreset(presets []config.LabelPreset, name string) bool {
	for _, p := range presets {
		if p.Name == name {
			return true
		}
	}
	return false
}

// userMessage adds the failing stage and the recovery hint to submission
// errors.
func userMessage(err error) string {
	var sErr *perrors.SubmitError
	if errors.As(err, &sErr) && sErr.Stage == perrors.StageIngest {
		msg := fmt.Sprintf("issue #%d was created upstream but could not be registered: %s", sErr.IssueNumber, sErr.Message)
		if sErr.PendingID != "" {
			msg += fmt.Sprintf("\nRetry only the registration with: pullquest resume-ingest -id %s", sErr.PendingID)
		}
		msg += "\nSubmitting the issue again would create a duplicate."
		return msg
	}
	return perrors.UserMessage(err)
}
