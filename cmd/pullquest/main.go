// Command pullquest is the maintainer console of the PullQuest staking
// workflow.
//
// Usage:
//
//	pullquest login -token <jwt> -email <email>
//	pullquest new-issue -owner acme -repo widgets -title "Fix crash" -stake 20
//	pullquest review -owner acme -repo widgets
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pullquest/console/internal/config"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "store a bearer token and load the user's session", runLogin},
	{"logout", "clear the session and stored token", runLogout},
	{"whoami", "show the current session and the areas it may enter", runWhoami},
	{"new-issue", "create a staked issue and register it", runNewIssue},
	{"pending", "list issues created upstream but not yet registered", runPending},
	{"resume-ingest", "retry registration of a created issue", runResumeIngest},
	{"review", "review open pull requests of a repository", runReview},
	{"xp", "compute the merge reward for feedback", runXP},
	{"repos", "list repositories of a GitHub user", runRepos},
	{"orgs", "list organizations of a GitHub user", runOrgs},
	{"status", "serve the local status API", runStatus},
}

func main() {
	_ = godotenv.Load()

	// Setup structured logging. Stdout is reserved for command output.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, cmd.name != "login")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	runErr := cmd.run(ctx, a, os.Args[2:])
	a.close()
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(runErr))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pullquest <command> [flags]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.summary)
	}
}
