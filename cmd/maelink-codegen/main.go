// maelink-codegen creates registration invite codes in the server's
// database, or lists the codes that are still there.
//
//	maelink-codegen --count 5 --ttl-days 7
//	maelink-codegen --list
//
// The database path comes from DATABASE_PATH (or .env) like the server's,
// unless --db is given.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/akinalp/maelink/config"
	"github.com/akinalp/maelink/database"
	"github.com/akinalp/maelink/repository"
	"github.com/akinalp/maelink/services"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var (
		count   int
		ttlDays int
		list    bool
		limit   int
		dbPath  string
	)

	flagSet := pflag.NewFlagSet("maelink-codegen", pflag.ContinueOnError)
	flagSet.IntVarP(&count, "count", "n", 1, "number of codes to generate")
	flagSet.IntVar(&ttlDays, "ttl-days", 7, "days until the codes expire (0 = never)")
	flagSet.BoolVar(&list, "list", false, "list stored codes instead of generating")
	flagSet.IntVar(&limit, "limit", 100, "maximum codes shown by --list")
	flagSet.StringVar(&dbPath, "db", "", "database path (default: DATABASE_PATH)")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if count <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	if ttlDays < 0 {
		return fmt.Errorf("--ttl-days must not be negative")
	}

	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dbPath = cfg.Database.Path
	}

	db, err := database.New(dbPath, database.Migrations())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	invites := repository.NewSQLiteInviteRepo(db.Conn)
	svc := services.NewInviteService(invites, config.InviteConfig{})

	if list {
		return listCodes(ctx, svc, limit, out)
	}

	codes, err := svc.Generate(ctx, count, time.Duration(ttlDays)*24*time.Hour)
	if err != nil {
		return err
	}
	for _, c := range codes {
		fmt.Fprintln(out, c.Value)
	}
	return nil
}

func listCodes(ctx context.Context, svc services.InviteService, limit int, out io.Writer) error {
	codes, err := svc.List(ctx, limit)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, c := range codes {
		expiry := "never"
		if c.ExpiresAt != nil {
			expiry = c.ExpiresAt.Local().Format(time.RFC3339)
			if !c.Usable(now) {
				expiry += " (expired)"
			}
		}
		fmt.Fprintf(out, "%s\texpires %s\n", c.Value, expiry)
	}
	return nil
}
