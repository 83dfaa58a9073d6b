package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/makkenzo/key-service-api/internal/client"
)

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

var isTerminal = term.IsTerminal

type app struct {
	v *viper.Viper
}

func newRootCmd(version string) *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:     "keyctl",
		Short:   "Issue, verify and revoke keys on a key service",
		Version: version,
		Long: `keyctl talks to a running key service over HTTP.

Admin commands (generate, revoke, list, stats) need an admin token, taken from
--admin-token, the KEYCTL_ADMIN_TOKEN environment variable, or an interactive
prompt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("server", client.DefaultServer, "key service base URL")
	flags.String("admin-token", "", "admin token for protected commands")
	flags.Duration("timeout", 10*time.Second, "request timeout")
	flags.StringP("output", "o", "text", "output format: text or json")

	_ = a.v.BindPFlag("server", flags.Lookup("server"))
	_ = a.v.BindPFlag("admin_token", flags.Lookup("admin-token"))
	_ = a.v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = a.v.BindPFlag("output", flags.Lookup("output"))
	a.v.SetEnvPrefix("KEYCTL")
	a.v.AutomaticEnv()

	cmd.AddCommand(a.newGenerateCmd())
	cmd.AddCommand(a.newVerifyCmd())
	cmd.AddCommand(a.newInfoCmd())
	cmd.AddCommand(a.newRevokeCmd())
	cmd.AddCommand(a.newListCmd())
	cmd.AddCommand(a.newStatsCmd())
	cmd.AddCommand(a.newHealthCmd())

	return cmd
}

func (a *app) client(cmd *cobra.Command, admin bool) (*client.Client, error) {
	var opts []client.Option
	if admin {
		token, err := a.adminToken(cmd)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithAdminToken(token))
	}
	return client.New(a.v.GetString("server"), opts...)
}

func (a *app) adminToken(cmd *cobra.Command) (string, error) {
	if token := a.v.GetString("admin_token"); token != "" {
		return token, nil
	}
	if !isTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("admin token required: pass --admin-token or set KEYCTL_ADMIN_TOKEN")
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Admin token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read admin token: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("admin token must not be empty")
	}
	return string(raw), nil
}

func (a *app) jsonOutput() bool {
	return a.v.GetString("output") == "json"
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
