package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/faucetdb/memberapi/internal/config"
	"github.com/faucetdb/memberapi/internal/schema"
	"github.com/faucetdb/memberapi/internal/service"
	"github.com/faucetdb/memberapi/internal/store"
)

// app bundles what a command needs to work on the admin database.
type app struct {
	settings *config.Settings
	logger   *slog.Logger
	closer   io.Closer
	conn     *store.Conn
	admins   *store.AdminStore
	identity *service.IdentityService
}

// openApp loads configuration, builds the logger and opens the admin store,
// creating the admins table when it is missing. A missing admins schema
// file is first written from the built-in default. Logs go to logOut.
func (o *rootOptions) openApp(ctx context.Context, logOut io.Writer) (*app, error) {
	s, err := o.settings()
	if err != nil {
		return nil, err
	}
	logger, closer, err := config.NewLogger(s, logOut)
	if err != nil {
		return nil, err
	}

	if err := ensureDir(s.Database.Path); err != nil {
		closer.Close()
		return nil, err
	}

	if written, err := schema.WriteFile(schema.Admins, s.Schemas.Admins, false); err != nil {
		logger.Warn("could not write default admin schema", "path", s.Schemas.Admins, "error", err)
	} else if written {
		logger.Info("wrote default admin schema", "path", s.Schemas.Admins)
	}

	conn := store.NewConn(s.Database.Path, logger)
	admins := store.NewAdminStore(ctx, conn, s.Schemas.Admins, logger)
	return &app{
		settings: s,
		logger:   logger,
		closer:   closer,
		conn:     conn,
		admins:   admins,
		identity: service.NewIdentityService(admins, logger),
	}, nil
}

// Close releases the log file, if any.
func (a *app) Close() error {
	return a.closer.Close()
}

// ensureDir creates the parent directory of the database file.
func ensureDir(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	return nil
}

// readPassword prompts for a password. On a terminal the input is hidden
// and must be typed twice; otherwise one line is read from in.
func readPassword(in io.Reader, out io.Writer, confirm bool) (string, error) {
	f, isFile := in.(*os.File)
	if !isFile || !term.IsTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "Password: ")
	pwBytes, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out)
	if !confirm {
		return string(pwBytes), nil
	}

	fmt.Fprint(out, "Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(f.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Fprintln(out)

	if string(pwBytes) != string(confirmBytes) {
		return "", errors.New("passwords do not match")
	}
	return string(pwBytes), nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
