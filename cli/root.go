// Package cli wires the client components behind a cobra command surface.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"connecto/api"
	"connecto/auth"
	"connecto/config"
	"connecto/feed"
	"connecto/models"
	"connecto/session"
)

// App holds the wired client components shared by all commands.
type App struct {
	cfg   *config.Config
	store session.Store
	api   *api.Client
	auth  *auth.Controller
	feed  *feed.Synchronizer

	out io.Writer
	in  *bufio.Reader
}

// NewRootCmd builds the connecto command tree.
func NewRootCmd() *cobra.Command {
	app := &App{
		out: os.Stdout,
		in:  bufio.NewReader(os.Stdin),
	}

	root := &cobra.Command{
		Use:           "connecto",
		Short:         "Connecto social feed client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}

	root.AddCommand(
		app.loginCmd(),
		app.registerCmd(),
		app.logoutCmd(),
		app.whoamiCmd(),
		app.feedCmd(),
		app.postCmd(),
	)
	return root
}

func (a *App) init() error {
	// Best-effort .env load before viper reads the environment.
	_ = godotenv.Load()
	a.cfg = config.LoadConfig()

	store, err := a.openStore()
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	a.store = store

	a.api = api.New(a.cfg.APIBaseURL, a.store)
	a.auth = auth.NewController(a.api, a.store)
	a.auth.SetLogoutHook(func() {
		if a.feed != nil {
			a.feed.Reset()
		}
		fmt.Fprintln(a.out, "Signed out. Run `connecto login` to sign in.")
	})
	a.feed = feed.NewSynchronizer(a.api, a.confirmDelete)
	return nil
}

func (a *App) openStore() (session.Store, error) {
	if a.cfg.SessionBackend == "redis" {
		return session.NewRedisStore(session.NewRedisClient(a.cfg.RedisURL), ""), nil
	}
	if dir := filepath.Dir(a.cfg.SessionPath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	return session.NewFileStore(a.cfg.SessionPath)
}

// confirmDelete is the explicit confirmation step required before any post
// deletion reaches the server.
func (a *App) confirmDelete(post models.Post) bool {
	caption := post.Caption
	if len(caption) > 40 {
		caption = caption[:37] + "..."
	}
	fmt.Fprintf(a.out, "Are you sure you want to delete this post? %q [y/N]: ", caption)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
