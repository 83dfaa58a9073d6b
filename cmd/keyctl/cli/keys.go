package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/makkenzo/key-service-api/internal/handler/dto"
)

func (a *app) requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.v.GetDuration("timeout"))
}

// ---------- generate ----------

func (a *app) newGenerateCmd() *cobra.Command {
	var (
		owner         string
		durationHours int
		maxUses       int
		saveFile      string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a new key",
		Long:  "Issue a new key for an owner. The key is printed once; use --save to append it to a file.",
		Example: `  keyctl generate --owner alice
  keyctl generate --owner ci --duration-hours 2 --max-uses 10 --save generated_keys.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			req := &dto.CreateKeyRequest{Owner: owner}
			if cmd.Flags().Changed("duration-hours") {
				req.DurationHours = &durationHours
			}
			if cmd.Flags().Changed("max-uses") {
				req.MaxUses = &maxUses
			}

			created, err := c.CreateKey(ctx, req)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}

			if saveFile != "" {
				if err := appendRecord(saveFile, "Key generated", [][2]string{
					{"Key", created.Key},
					{"Owner", created.Owner},
					{"Expires", created.ExpiresAt.Format(time.RFC3339)},
					{"Max uses", fmt.Sprint(created.MaxUses)},
				}); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not save key: %v\n", err)
				}
			}

			if a.jsonOutput() {
				return printJSON(cmd, created)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Key generated:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  Key:      %s\n", created.Key)
			fmt.Fprintf(out, "  Owner:    %s\n", created.Owner)
			fmt.Fprintf(out, "  Expires:  %s\n", created.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(out, "  Max uses: %d\n", created.MaxUses)
			if saveFile != "" {
				fmt.Fprintf(out, "\n  Saved to %s\n", saveFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner of the key (required)")
	cmd.Flags().IntVar(&durationHours, "duration-hours", 24, "lifetime of the key in hours")
	cmd.Flags().IntVar(&maxUses, "max-uses", 1, "number of successful validations allowed")
	cmd.Flags().StringVar(&saveFile, "save", "", "append the generated key to this file")
	_ = cmd.MarkFlagRequired("owner")

	return cmd
}

// ---------- verify ----------

func (a *app) newVerifyCmd() *cobra.Command {
	var saveFile string

	cmd := &cobra.Command{
		Use:   "verify KEY",
		Short: "Validate a key, consuming one use on success",
		Long:  "Validate a key. A successful validation consumes one use. Exits non-zero when the key is not valid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, false)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			token := args[0]
			res, err := c.ValidateKey(ctx, token)
			if err != nil {
				return fmt.Errorf("verify key: %w", err)
			}

			if saveFile != "" {
				if err := appendRecord(saveFile, verificationTitle(res), verificationFields(token, res)); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not save verification: %v\n", err)
				}
			}

			if a.jsonOutput() {
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if res.IsValid {
					fmt.Fprintln(out, "Key is valid")
					fmt.Fprintf(out, "  Owner:          %s\n", res.Owner)
					fmt.Fprintf(out, "  Remaining uses: %d\n", *res.RemainingUses)
					fmt.Fprintf(out, "  Expires:        %s\n", res.ExpiresAt.Format(time.RFC3339))
				} else {
					fmt.Fprintln(out, "Key is not valid")
					fmt.Fprintf(out, "  Status: %s\n", res.Status)
					fmt.Fprintf(out, "  Reason: %s\n", res.Reason)
				}
			}

			if !res.IsValid {
				return fmt.Errorf("key rejected: %s", res.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saveFile, "save", "", "append the verification result to this file")
	return cmd
}

func verificationTitle(res *dto.ValidateKeyResponse) string {
	if res.IsValid {
		return "Verification succeeded"
	}
	return "Verification failed"
}

func verificationFields(token string, res *dto.ValidateKeyResponse) [][2]string {
	if !res.IsValid {
		return [][2]string{{"Key", token}, {"Reason", res.Reason}}
	}
	return [][2]string{
		{"Key", token},
		{"Owner", res.Owner},
		{"Remaining uses", fmt.Sprint(*res.RemainingUses)},
		{"Expires", res.ExpiresAt.Format(time.RFC3339)},
	}
}

// ---------- info ----------

func (a *app) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info KEY",
		Short: "Show a key without consuming a use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, false)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			info, err := c.GetKey(ctx, args[0])
			if err != nil {
				return fmt.Errorf("key info: %w", err)
			}

			if a.jsonOutput() {
				return printJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:            %s\n", info.Key)
			fmt.Fprintf(out, "Owner:          %s\n", info.Owner)
			fmt.Fprintf(out, "Created:        %s\n", info.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Expires:        %s\n", info.ExpiresAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Uses:           %d/%d\n", info.CurrentUses, info.MaxUses)
			fmt.Fprintf(out, "Remaining uses: %d\n", info.RemainingUses)
			fmt.Fprintf(out, "Active:         %t\n", info.IsActive)
			fmt.Fprintf(out, "Expired:        %t\n", info.IsExpired)
			return nil
		},
	}
}

// ---------- revoke ----------

func (a *app) newRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke KEY",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			res, err := c.RevokeKey(ctx, args[0])
			if err != nil {
				return fmt.Errorf("revoke key: %w", err)
			}

			if a.jsonOutput() {
				return printJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Message, res.Key)
			return nil
		},
	}
}

// ---------- list ----------

func (a *app) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			keys, err := c.ListKeys(ctx)
			if err != nil {
				return fmt.Errorf("list keys: %w", err)
			}

			if a.jsonOutput() {
				return printJSON(cmd, keys)
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys issued.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tOWNER\tUSES\tEXPIRES\tSTATE")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
					k.Key, k.Owner, k.CurrentUses, k.MaxUses, k.ExpiresAt.Format(time.RFC3339), keyState(k))
			}
			return w.Flush()
		},
	}
}

func keyState(k dto.KeyResponse) string {
	switch {
	case !k.IsActive:
		return "revoked"
	case k.IsExpired:
		return "expired"
	case k.RemainingUses == 0:
		return "exhausted"
	default:
		return "active"
	}
}

// ---------- stats ----------

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, true)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			stats, err := c.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			if a.jsonOutput() {
				return printJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total keys:   %d\n", stats.TotalKeys)
			fmt.Fprintf(out, "Active keys:  %d\n", stats.ActiveKeys)
			fmt.Fprintf(out, "Expired keys: %d\n", stats.ExpiredKeys)
			return nil
		},
	}
}

// ---------- health ----------

func (a *app) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the key service is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd, false)
			if err != nil {
				return err
			}
			ctx, cancel := a.requestContext(cmd)
			defer cancel()

			health, err := c.Health(ctx)
			if a.jsonOutput() && len(health) > 0 {
				if perr := printJSON(cmd, health); perr != nil {
					return perr
				}
			} else if len(health) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Status: %v\n", health["status"])
				if deps, ok := health["dependencies"].(map[string]any); ok {
					for name, status := range deps {
						fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", name, status)
					}
				}
			}
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}
			return nil
		},
	}
}
