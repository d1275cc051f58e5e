package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-docshare/internal/client"
	"github.com/go-docshare/internal/domain"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

type command struct {
	needsSession bool
	run          func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"register": {run: cmdRegister},
	"verify":   {run: cmdVerify},
	"resend":   {run: cmdResend},
	"login":    {run: cmdLogin},
	"logout":   {run: cmdLogout},
	"whoami":   {needsSession: true, run: cmdWhoami},
	"profile":  {needsSession: true, run: cmdProfile},
	"passwd":   {needsSession: true, run: cmdPasswd},
	"docs":     {needsSession: true, run: cmdDocs},
}

var docsCommands = map[string]func(ctx context.Context, a *app, args []string) error{
	"ls":     docsList,
	"shared": docsShared,
	"get":    docsGet,
	"upload": docsUpload,
	"edit":   docsEdit,
	"share":  docsShare,
	"access": docsAccess,
	"revoke": docsRevoke,
	"rm":     docsRemove,
}

func newFlags(name string, a *app) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register", a)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return errors.New("--name and --email are required")
	}
	pw, err := a.secret("Password: ", *password)
	if err != nil {
		return err
	}
	if err := a.session.Register(ctx, domain.RegisterRequest{Name: *name, Email: *email, Password: pw}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s. Check your inbox and run: docshare verify --email %s --code <code>\n", *email, *email)
	return nil
}

func cmdVerify(ctx context.Context, a *app, args []string) error {
	fs := newFlags("verify", a)
	email := fs.String("email", "", "email address")
	code := fs.String("code", "", "6-digit code from the email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *code == "" {
		return errors.New("--email and --code are required")
	}
	snap, err := a.session.VerifyOTP(ctx, *email, *code)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Email verified. Logged in as %s <%s>\n", snap.User.Name, snap.User.Email)
	return nil
}

func cmdResend(ctx context.Context, a *app, args []string) error {
	fs := newFlags("resend", a)
	email := fs.String("email", "", "email address")
	wait := fs.Bool("wait", false, "wait out the resend cooldown before sending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}
	if *wait {
		err := client.Countdown(ctx, client.ResendCooldown, time.Second, func(left time.Duration) {
			fmt.Fprintf(a.out, "\rResend available in %2ds", int(left.Seconds()))
		})
		fmt.Fprintln(a.out)
		if err != nil {
			return err
		}
	}
	if err := a.session.ResendOTP(ctx, *email); err != nil {
		if errors.Is(err, domain.ErrTooManyRequests) {
			return fmt.Errorf("a code was sent recently, try again with --wait: %w", err)
		}
		return err
	}
	fmt.Fprintln(a.out, "If the account is awaiting verification, a new code is on its way.")
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login", a)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}
	pw, err := a.secret("Password: ", *password)
	if err != nil {
		return err
	}
	snap, err := a.session.Login(ctx, *email, pw)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Logged in as %s <%s>\n", snap.User.Name, snap.User.Email)
	return nil
}

func cmdLogout(_ context.Context, a *app, _ []string) error {
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	u := a.session.Snapshot().User
	fmt.Fprintf(a.out, "%s <%s> id=%s\n", u.Name, u.Email, u.UserID)
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile", a)
	name := fs.String("name", "", "new display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.session.UpdateProfile(ctx, *name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Name set to %s\n", a.session.Snapshot().User.Name)
	return nil
}

func cmdPasswd(ctx context.Context, a *app, _ []string) error {
	current, err := a.secret("Current password: ", "")
	if err != nil {
		return err
	}
	next, err := a.secret("New password: ", "")
	if err != nil {
		return err
	}
	if err := a.session.ChangePassword(ctx, current, next); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated.")
	return nil
}

func cmdDocs(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errors.New("docs needs a subcommand: ls, shared, get, upload, edit, share, access, revoke, rm")
	}
	sub, ok := docsCommands[args[0]]
	if !ok {
		return fmt.Errorf("unknown docs subcommand %q", args[0])
	}
	return sub(ctx, a, args[1:])
}

func docsList(ctx context.Context, a *app, _ []string) error {
	docs, err := a.session.ListDocuments(ctx)
	if err != nil {
		return err
	}
	a.printDocs(docs)
	return nil
}

func docsShared(ctx context.Context, a *app, _ []string) error {
	docs, err := a.session.ListShared(ctx)
	if err != nil {
		return err
	}
	a.printDocs(docs)
	return nil
}

func docsGet(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: docs get <id>")
	}
	d, err := a.session.GetDocument(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n  type: %s\n  file: %s (%d bytes)\n  your access: %s\n", d.Title, d.DocumentType, d.FileName, d.Size, d.Permission)
	if d.Description != "" {
		fmt.Fprintf(a.out, "  description: %s\n", d.Description)
	}
	if d.FileURL != "" {
		fmt.Fprintf(a.out, "  download: %s\n", d.FileURL)
	}
	if d.IsOwner {
		a.printGrants(d.SharedWith)
	}
	return nil
}

func docsUpload(ctx context.Context, a *app, args []string) error {
	fs := newFlags("docs upload", a)
	title := fs.String("title", "", "document title (defaults to the file name)")
	docType := fs.String("type", domain.DocTypeOther, "document type")
	description := fs.String("description", "", "optional description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: docs upload <file> [--title T] [--type T] [--description D]")
	}
	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	if *title == "" {
		*title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	d, err := a.session.Upload(ctx, client.UploadRequest{
		Title:        *title,
		Description:  *description,
		DocumentType: *docType,
		FileName:     name,
		Body:         f,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s as %s\n", name, d.DocumentID)
	return nil
}

func docsEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlags("docs edit", a)
	title := fs.String("title", "", "new title")
	description := fs.String("description", "", "new description")
	docType := fs.String("type", "", "new document type")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: docs edit <id> [--title T] [--description D] [--type T]")
	}
	var patch domain.DocumentPatch
	if fs.Changed("title") {
		patch.Title = title
	}
	if fs.Changed("description") {
		patch.Description = description
	}
	if fs.Changed("type") {
		patch.DocumentType = docType
	}
	if patch.Empty() {
		return errors.New("nothing to change")
	}
	d, err := a.session.UpdateDocument(ctx, fs.Arg(0), patch)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", d.Title)
	return nil
}

func docsShare(ctx context.Context, a *app, args []string) error {
	fs := newFlags("docs share", a)
	email := fs.String("email", "", "collaborator's email")
	level := fs.String("level", string(domain.AccessView), "view or edit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *email == "" {
		return errors.New("usage: docs share <id> --email E [--level view|edit]")
	}
	grants, err := a.session.Share(ctx, fs.Arg(0), *email, domain.AccessLevel(*level))
	if err != nil {
		return err
	}
	a.printGrants(grants)
	return nil
}

func docsAccess(ctx context.Context, a *app, args []string) error {
	fs := newFlags("docs access", a)
	level := fs.String("level", "", "view or edit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 || *level == "" {
		return errors.New("usage: docs access <id> <user-id> --level view|edit")
	}
	grants, err := a.session.UpdateAccess(ctx, fs.Arg(0), fs.Arg(1), domain.AccessLevel(*level))
	if err != nil {
		return err
	}
	a.printGrants(grants)
	return nil
}

func docsRevoke(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: docs revoke <id> <user-id>")
	}
	grants, err := a.session.Revoke(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.printGrants(grants)
	return nil
}

func docsRemove(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: docs rm <id>")
	}
	if err := a.session.DeleteDocument(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

func (a *app) printDocs(docs []domain.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No documents.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tFILE\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.DocumentID, d.Title, d.DocumentType, d.FileName, d.CreatedAt.Format(time.DateOnly))
	}
	_ = tw.Flush()
	fmt.Fprintf(a.out, "%d document(s)\n", len(docs))
}

func (a *app) printGrants(grants []domain.ShareGrant) {
	if len(grants) == 0 {
		fmt.Fprintln(a.out, "Not shared with anyone.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER ID\tEMAIL\tACCESS")
	for _, g := range grants {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.UserID, g.Email, g.AccessLevel)
	}
	_ = tw.Flush()
}

// secret returns given when set, otherwise prompts. Terminal input is not
// echoed; piped input is read one line at a time.
func (a *app) secret(prompt, given string) (string, error) {
	if given != "" {
		return given, nil
	}
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.out)
		return string(b), err
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.in)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s%w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe adds a hint to the errors a user can act on.
func describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrMismatch):
		return fmt.Errorf("that code is not valid: %w", err)
	case errors.Is(err, domain.ErrExpired):
		return fmt.Errorf("the code has expired, run `docshare resend`: %w", err)
	case errors.Is(err, domain.ErrForbidden):
		return fmt.Errorf("verify your email first: %w", err)
	case errors.Is(err, domain.ErrNetwork):
		return fmt.Errorf("server unreachable, try again: %w", err)
	}
	return err
}
