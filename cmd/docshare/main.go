// docshare is a command line client for the docshare API. The session token
// is kept in a file between invocations.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-docshare/internal/client"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	session *client.Session
	in      io.Reader
	out     io.Writer
	lines   *bufio.Reader
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	var (
		server    string
		tokenFile string
		timeout   time.Duration
	)
	defaultToken, _ := client.DefaultTokenPath()

	flagSet := pflag.NewFlagSet("docshare", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVar(&server, "server", envOr("DOCSHARE_SERVER", "http://localhost:5000"), "API base URL")
	flagSet.StringVar(&tokenFile, "token-file", envOr("DOCSHARE_TOKEN_FILE", defaultToken), "where the session token is stored")
	flagSet.DurationVar(&timeout, "timeout", 15*time.Second, "per-request timeout")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { printUsage(out, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(out, flagSet)
		return fmt.Errorf("no command given")
	}
	if tokenFile == "" {
		return fmt.Errorf("--token-file is required when no user config dir is available")
	}

	a := &app{
		session: client.NewSession(client.NewAPI(server, timeout), client.NewFileTokenStore(tokenFile)),
		in:      in,
		out:     out,
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if cmd.needsSession {
		if _, err := a.session.Restore(ctx); err != nil {
			return fmt.Errorf("not logged in (run `docshare login`): %w", err)
		}
	}
	return cmd.run(ctx, a, rest[1:])
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `Usage: docshare [global flags] <command> [flags]

Account:
  register      create an account and send a verification code
  verify        confirm the emailed code and log in
  resend        send a new verification code
  login         log in with email and password
  whoami        show the logged in user
  logout        forget the stored session
  profile       change your display name
  passwd        change your password

Documents:
  docs ls                       documents you own
  docs shared                   documents shared with you
  docs get <id>                 show one document and a download link
  docs upload <file>            upload a pdf, doc, docx, jpg, jpeg or png
  docs edit <id>                change title, description or type
  docs share <id>               give someone view or edit access
  docs access <id> <user-id>    change a collaborator's access level
  docs revoke <id> <user-id>    remove a collaborator
  docs rm <id>                  delete a document

Global flags:
%s`, flagSet.FlagUsages())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
