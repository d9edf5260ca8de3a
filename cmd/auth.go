package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kylinctl/kylinctl/internal/apperrors"
	"github.com/kylinctl/kylinctl/internal/config"
	"github.com/kylinctl/kylinctl/internal/schema"
)

var authSave bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Check the credentials and show the authenticated user",
	Long: `Authenticate against the server and print the user and its roles.

When neither a password nor a session is configured the password is
prompted for. With --save the prompted password is written to the
config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := serverConfig()
		if err != nil {
			return err
		}

		prompted := false
		if !sc.HasCredentials() {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("no password configured and stdin is not a terminal: %w", apperrors.ErrUnauthorized)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s@%s: ", sc.Username, sc.Host)
			pw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			sc.Password = strings.TrimSpace(string(pw))
			prompted = true
		}

		p, err := newProject(sc)
		if err != nil {
			return err
		}
		user, err := p.Authenticate(cmd.Context())
		if err != nil {
			return err
		}

		if prompted && authSave {
			cfg.Server = sc
			path := cfgFile
			if path == "" {
				path = config.ExpandHome(config.DefaultPath)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			logger.Info("saved credentials", "path", path)
		}

		return render(cmd, user, func(w *tabwriter.Writer) {
			row(w, "USERNAME", user.Username)
			row(w, "ROLES", strings.Join(roles(*user), ", "))
			if user.Disabled {
				row(w, "DISABLED", "yes")
			}
		})
	},
}

// userLister is implemented by services with an admin user listing.
type userLister interface {
	Users(ctx context.Context) ([]schema.UserDetails, error)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users on the server (KE3, admin role)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := connect()
		if err != nil {
			return err
		}
		ul, ok := p.Service().(userLister)
		if !ok {
			return fmt.Errorf("listing users on %s: %w", p.Version(), apperrors.ErrUnsupportedAPI)
		}
		users, err := ul.Users(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd, users, func(w *tabwriter.Writer) {
			row(w, "USERNAME", "ROLES", "DISABLED")
			for _, u := range users {
				row(w, u.Username, strings.Join(roles(u), ","), u.Disabled)
			}
		})
	},
}

func roles(u schema.UserDetails) []string {
	out := make([]string, len(u.Authorities))
	for i, a := range u.Authorities {
		out[i] = a.Authority
	}
	return out
}

func init() {
	authCmd.Flags().BoolVar(&authSave, "save", false, "save a prompted password to the config file")
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(usersCmd)
}
