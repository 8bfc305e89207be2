package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/darrenapfel/theagnt-website-sub001/config"
	"github.com/darrenapfel/theagnt-website-sub001/internal/adapters/reaper"
	"github.com/darrenapfel/theagnt-website-sub001/internal/bootstrap"
	domainauth "github.com/darrenapfel/theagnt-website-sub001/internal/domain/auth"
	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	"github.com/darrenapfel/theagnt-website-sub001/internal/migrate"
	"github.com/darrenapfel/theagnt-website-sub001/internal/service"
)

const timeLayout = time.RFC3339

type migrateOptions struct {
	Timeout time.Duration
}

type listOptions struct {
	Domain string
	Limit  int
	Offset int
}

func parseMigrateFlags(name string, args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout, "Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func parseListFlags(name string, args []string, withDomain bool) (listOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listOptions{Limit: 50}
	if withDomain {
		fs.StringVar(&opts.Domain, "domain", "", "Only list accounts whose email domain matches")
	}
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of rows to print")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of rows to skip")

	if err := fs.Parse(args); err != nil {
		return listOptions{}, err
	}
	if opts.Limit <= 0 {
		return listOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listOptions{}, errors.New("--offset must not be negative")
	}
	opts.Domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(opts.Domain), "@"))
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate", args)
	if err != nil {
		return err
	}
	conns, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config, ForceDB: true})
	if err != nil {
		return err
	}
	defer closeInfraLogged(conns, cmdCtx.Logger)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	applied, err := migrate.Up(ctx, conns.DB, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) == 0 {
		return writeln(cmdCtx.Out, "database schema is up to date")
	}
	return writef(cmdCtx.Out, "applied %d migration(s): %s\n", len(applied), strings.Join(applied, ", "))
}

func runMigrationStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags("migrate-status", args)
	if err != nil {
		return err
	}
	conns, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config, ForceDB: true})
	if err != nil {
		return err
	}
	defer closeInfraLogged(conns, cmdCtx.Logger)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	status, err := migrate.Status(ctx, conns.DB)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return printMigrationStatus(cmdCtx.Out, status)
}

func printMigrationStatus(w io.Writer, status []migrate.Migration) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "VERSION\tAPPLIED AT\n"); err != nil {
		return err
	}
	for _, m := range status {
		applied := "pending"
		if m.AppliedAt != nil {
			applied = m.AppliedAt.UTC().Format(timeLayout)
		}
		if err := writef(tw, "%s\t%s\n", m.Version, applied); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runClassify(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: theagnt-admin classify <email> [email...]")
	}
	classifier := domainauth.NewClassifier(cmdCtx.Config.Access.OrgDomain, cmdCtx.Config.Access.AdminEmail)

	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 0, 2, ' ', 0)
	if err := writef(tw, "EMAIL\tROLE\tPERMISSION\tINTERNAL\tADMIN\n"); err != nil {
		return err
	}
	for _, raw := range args {
		access := classifier.Classify(raw)
		if err := writef(tw, "%s\t%s\t%s\t%t\t%t\n",
			domainauth.NormalizeEmail(raw),
			access.Role,
			access.PermissionLevel,
			access.CanAccessInternal,
			access.CanAccessAdmin,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runIssueLink(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: theagnt-admin issue-link <email> [redirect-path]")
	}
	redirect := ""
	if len(args) == 2 {
		redirect = args[1]
	}
	cfg := &cmdCtx.Config
	if cfg.Storage.TokenBackend() == config.BackendMemory {
		cmdCtx.Logger.Warn("token store is in-memory; the issued link will not verify against a running server")
	}

	conns, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: cfg})
	if err != nil {
		return err
	}
	defer closeInfraLogged(conns, cmdCtx.Logger)

	stores, err := bootstrap.BuildStores(cfg, conns.DB, conns.Redis)
	if err != nil {
		return err
	}
	sender, err := bootstrap.BuildEmailSender(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	links := service.NewMagicLinkService(service.MagicLinkServiceOptions{
		Tokens:   stores.Tokens,
		Sender:   sender,
		Accounts: stores.Accounts,
		Config:   service.MagicLinkConfig{BaseURL: cfg.HTTP.BaseURL},
		Logger:   cmdCtx.Logger,
	})

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	res, err := links.Issue(ctx, args[0], redirect)
	if err != nil {
		return fmt.Errorf("issue magic link: %w", err)
	}
	return writef(cmdCtx.Out, "magic link for %s expires %s\n", domainauth.NormalizeEmail(args[0]), res.ExpiresAt.UTC().Format(timeLayout))
}

func runListUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags("users", args, true)
	if err != nil {
		return err
	}
	if cmdCtx.Config.Storage.Backend != config.BackendPostgres {
		return errPostgresRequired
	}
	conns, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config})
	if err != nil {
		return err
	}
	defer closeInfraLogged(conns, cmdCtx.Logger)

	stores, err := bootstrap.BuildStores(&cmdCtx.Config, conns.DB, conns.Redis)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	users, err := stores.Directory.ListUsers(ctx, model.UserListOptions{Domain: opts.Domain, Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	return printUsers(cmdCtx.Out, users)
}

func printUsers(w io.Writer, users []model.User) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "EMAIL\tNAME\tPROVIDER\tCREATED\tLAST SIGN-IN\n"); err != nil {
		return err
	}
	for _, u := range users {
		last := "never"
		if u.LastSignInAt != nil {
			last = u.LastSignInAt.UTC().Format(timeLayout)
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n",
			u.Email, u.DisplayName, u.Provider, u.CreatedAt.UTC().Format(timeLayout), last); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%d account(s)\n", len(users))
}

func runListWaitlist(cmdCtx *commandContext, args []string) error {
	opts, err := parseListFlags("waitlist", args, false)
	if err != nil {
		return err
	}
	if cmdCtx.Config.Storage.Backend != config.BackendPostgres {
		return errPostgresRequired
	}
	conns, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: &cmdCtx.Config})
	if err != nil {
		return err
	}
	defer closeInfraLogged(conns, cmdCtx.Logger)

	stores, err := bootstrap.BuildStores(&cmdCtx.Config, conns.DB, conns.Redis)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	entries, err := stores.Waitlist.ListWaitlist(ctx, model.WaitlistListOptions{Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		return fmt.Errorf("list waitlist: %w", err)
	}
	return printWaitlist(cmdCtx.Out, entries)
}

func printWaitlist(w io.Writer, entries []model.WaitlistEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writef(tw, "EMAIL\tJOINED\tCONVERTED\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writef(tw, "%s\t%s\t%t\n", e.Email, e.CreatedAt.UTC().Format(timeLayout), e.Converted); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return writef(w, "\n%d entr(ies)\n", len(entries))
}

func runPurgeTokens(cmdCtx *commandContext, _ []string) error {
	cfg := &cmdCtx.Config
	switch cfg.Storage.TokenBackend() {
	case config.BackendRedis:
		return writeln(cmdCtx.Out, "redis token store expires tokens natively; nothing to purge")
	case config.BackendMemory:
		return errors.New("purge-tokens requires the postgres token store")
	}

	conns, err := connectInfra(&connectInfraOptions{Logger: cmdCtx.Logger, Config: cfg})
	if err != nil {
		return err
	}
	defer closeInfraLogged(conns, cmdCtx.Logger)

	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:       conns.DB,
		Interval: cfg.Reaper.Interval,
		Grace:    cfg.Reaper.Grace,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	n, err := runner.PurgeOnce(ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Out, "purged %d expired token(s)\n", n)
}
