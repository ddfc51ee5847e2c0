package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/api"
	"github.com/dmitrijs2005/gophvault/internal/client/client"
	"github.com/dmitrijs2005/gophvault/internal/client/config"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/netx"
)

var (
	errUsage         = errors.New("usage: vaultctl [-a addr] [-t token] [-c config.json] <command> [args]")
	errEmptyPassword = errors.New("empty password")
	errAborted       = errors.New("aborted")
)

type vaultAPI interface {
	Close() error
	Ping(ctx context.Context) error
	CheckBreach(ctx context.Context, passwords ...string) ([]api.BreachResult, error)
	ValidateBackup(ctx context.Context, archive []byte) (*api.ValidateBackupResponse, error)
	CreateBackup(ctx context.Context, masterPassword string) ([]byte, error)
	RestoreBackup(ctx context.Context, masterPassword string, archive []byte) (*api.RestoreBackupResponse, error)
	ListCredentials(ctx context.Context, deleted bool) ([]api.Credential, error)
	ListVersions(ctx context.Context, credentialID string) ([]api.Version, error)
	ExportBackup(ctx context.Context, masterPassword string) (string, error)
	ShareBackup(ctx context.Context, key string) (string, error)
	TwoFactorStatus(ctx context.Context) (*api.TwoFactorStatusResponse, error)
}

type App struct {
	config *config.Config
	api    vaultAPI
	http   *http.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewVaultClient(c.ServerEndpointAddr, c.AccessToken)
	if err != nil {
		return nil, err
	}

	return &App{config: c, api: apiClient, http: http.DefaultClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

// Run executes one command and closes the connection.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.api.Close()

	if len(args) == 0 {
		return errUsage
	}

	if a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "health":
		return a.health(ctx)
	case "breach":
		return a.breach(ctx)
	case "validate":
		return a.oneArg(rest, func(path string) error { return a.validate(ctx, path) })
	case "backup":
		return a.oneArg(rest, func(path string) error { return a.backup(ctx, path) })
	case "restore":
		return a.oneArg(rest, func(path string) error { return a.restore(ctx, path) })
	case "export":
		return a.export(ctx)
	case "share":
		return a.oneArg(rest, func(key string) error { return a.share(ctx, key) })
	case "fetch":
		if len(rest) != 2 {
			return errUsage
		}
		return a.fetch(ctx, rest[0], rest[1])
	case "list":
		return a.list(ctx, len(rest) > 0 && rest[0] == "deleted")
	case "versions":
		return a.oneArg(rest, func(id string) error { return a.versions(ctx, id) })
	case "2fa":
		return a.twoFactor(ctx)
	case "help":
		fmt.Fprintln(a.out, "Available commands: health, breach, validate, backup, restore, export, share, fetch, list, versions, 2fa")
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func (a *App) oneArg(args []string, fn func(string) error) error {
	if len(args) != 1 {
		return errUsage
	}
	return fn(args[0])
}

func (a *App) masterPassword() (string, error) {
	pw, err := GetPassword(a.reader, "Master password: ", a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

func (a *App) health(ctx context.Context) error {
	if err := a.api.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "SERVING")
	return nil
}

func (a *App) breach(ctx context.Context) error {
	pw, err := GetPassword(a.reader, "Password to check: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	res, err := a.api.CheckBreach(ctx, string(pw))
	if err != nil {
		return err
	}
	if len(res) == 1 && res[0].Found {
		fmt.Fprintf(a.out, "FOUND in %d breaches. Do not use this password.\n", res[0].Count)
		return nil
	}
	fmt.Fprintln(a.out, "Not found in known breaches.")
	return nil
}

func (a *App) validate(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	res, err := a.api.ValidateBackup(ctx, b)
	if err != nil {
		return err
	}
	if !res.IsValid {
		fmt.Fprintf(a.out, "INVALID: %s\n", res.Reason)
		return nil
	}
	fmt.Fprintf(a.out, "VALID: format v%d, created %s, payload %d bytes\n",
		res.FormatVersion, res.CreatedAt.Format("2006-01-02 15:04:05 MST"), res.PayloadSize)
	return nil
}

func (a *App) backup(ctx context.Context, path string) error {
	pw, err := a.masterPassword()
	if err != nil {
		return err
	}

	b, err := a.api.CreateBackup(ctx, pw)
	if err != nil {
		return err
	}

	if err := filex.WritePrivate(path, b); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backup written to %s\n", path)
	return nil
}

func (a *App) restore(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ok, err := Confirm(a.reader, "This replaces every active credential.", a.out)
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}

	pw, err := a.masterPassword()
	if err != nil {
		return err
	}

	sum, err := a.api.RestoreBackup(ctx, pw, b)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Restored %d credentials (%d notes).\n", sum.CredentialsRestored, sum.NotesRestored)
	if sum.TwoFactorReenrollRequired {
		fmt.Fprintln(a.out, "Two-factor was enabled when this backup was made. Enroll again.")
	}
	return nil
}

func (a *App) export(ctx context.Context) error {
	pw, err := a.masterPassword()
	if err != nil {
		return err
	}

	key, err := a.api.ExportBackup(ctx, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Backup stored as %s\n", key)
	return nil
}

func (a *App) share(ctx context.Context, key string) error {
	url, err := a.api.ShareBackup(ctx, key)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, url)
	return nil
}

// fetch downloads a shared archive and checks it before writing it out.
func (a *App) fetch(ctx context.Context, url, path string) error {
	b, err := netx.Download(ctx, a.http, url)
	if err != nil {
		return err
	}

	res, err := a.api.ValidateBackup(ctx, b)
	if err != nil {
		return err
	}
	if !res.IsValid {
		return fmt.Errorf("%w: %s", client.ErrIntegrity, res.Reason)
	}

	if err := filex.WritePrivate(path, b); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Archive saved to %s\n", path)
	return nil
}

func (a *App) list(ctx context.Context, deleted bool) error {
	items, err := a.api.ListCredentials(ctx, deleted)
	if err != nil {
		return err
	}

	for _, c := range items {
		fmt.Fprintf(a.out, "%s\t%s\t%s\tv%d\n", c.ID, c.Category, c.Title, c.Version)
	}
	return nil
}

func (a *App) versions(ctx context.Context, credentialID string) error {
	items, err := a.api.ListVersions(ctx, credentialID)
	if err != nil {
		return err
	}

	for _, v := range items {
		fmt.Fprintf(a.out, "v%d\t%s\t%s\n", v.Version, v.CapturedAt.Format("2006-01-02 15:04:05"), v.Title)
	}
	return nil
}

func (a *App) twoFactor(ctx context.Context) error {
	st, err := a.api.TwoFactorStatus(ctx)
	if err != nil {
		return err
	}

	switch {
	case st.Enabled:
		fmt.Fprintln(a.out, "two-factor: enabled")
	case st.Verified:
		fmt.Fprintln(a.out, "two-factor: verified, disabled")
	default:
		fmt.Fprintln(a.out, "two-factor: disabled")
	}
	return nil
}
