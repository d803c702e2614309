package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faucetdb/memberapi/internal/model"
	"github.com/faucetdb/memberapi/internal/service"
	"github.com/faucetdb/memberapi/internal/store"
)

func newAdminCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create, inspect, change and remove the administrator accounts that may use the API.",
	}

	cmd.AddCommand(newAdminCreateCmd(opts))
	cmd.AddCommand(newAdminListCmd(opts))
	cmd.AddCommand(newAdminGetCmd(opts))
	cmd.AddCommand(newAdminUpdateCmd(opts))
	cmd.AddCommand(newAdminPasswdCmd(opts))
	cmd.AddCommand(newAdminRemoveCmd(opts))
	cmd.AddCommand(newAdminActiveCmd(opts, "disable", false))
	cmd.AddCommand(newAdminActiveCmd(opts, "enable", true))

	return cmd
}

// withApp opens the admin store for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.openApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// resolveAdmin accepts a numeric id or a username.
func resolveAdmin(ctx context.Context, identity *service.IdentityService, ref string) (int64, model.Record, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil && id > 0 {
		rec, err := identity.GetInfoByID(ctx, id)
		if err != nil {
			return 0, nil, adminLookupError(ref, err)
		}
		return id, rec, nil
	}
	rec, err := identity.GetInfoByUsername(ctx, ref)
	if err != nil {
		return 0, nil, adminLookupError(ref, err)
	}
	id, err := rec.Int(model.ColID)
	if err != nil {
		return 0, nil, err
	}
	return id, rec, nil
}

func adminLookupError(ref string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("admin %q not found", ref)
	}
	return err
}

// ---------- admin create ----------

func newAdminCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		username string
		emailid  string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  memberapi admin create --username alice --email alice@example.com --password secret
  memberapi admin create --username alice --email alice@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.Contains(emailid, "@") {
				return fmt.Errorf("invalid email address: %q", emailid)
			}
			if password == "" {
				pw, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), true)
				if err != nil {
					return err
				}
				password = pw
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				id, _, err := a.identity.Register(ctx, username, emailid, password)
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %q (id=%d)\n", username, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin username (required)")
	cmd.Flags().StringVar(&emailid, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

// ---------- admin list ----------

func newAdminListCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				recs, err := a.identity.List(ctx)
				if err != nil {
					return fmt.Errorf("list admins: %w", err)
				}
				return printAdmins(cmd.OutOrStdout(), recs, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func printAdmins(w io.Writer, recs []model.Record, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(w, "No admin accounts. Use 'memberapi admin create' to create one.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tACTIVE\tCREATED")
	for _, r := range recs {
		a, err := model.AdminFromRecord(r)
		if err != nil {
			return err
		}
		active := "yes"
		if !a.Active {
			active = "no"
		}
		created := strconv.FormatInt(a.CreatedAt, 10)
		if t, err := model.ParseTimestamp(a.CreatedAt); err == nil {
			created = t.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Username, a.EmailID, active, created)
	}
	return tw.Flush()
}

// ---------- admin get ----------

func newAdminGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|username>",
		Short: "Show one admin account as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				_, rec, err := resolveAdmin(ctx, a.identity, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			})
		},
	}
}

// ---------- admin update ----------

func newAdminUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		username string
		emailid  string
	)

	cmd := &cobra.Command{
		Use:   "update <id|username>",
		Short: "Change an admin's username or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" && emailid == "" {
				return errors.New("nothing to change: pass --username and/or --email")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				id, _, err := resolveAdmin(ctx, a.identity, args[0])
				if err != nil {
					return err
				}
				if err := a.identity.ChangeDetails(ctx, id, username, emailid, ""); err != nil {
					return fmt.Errorf("update admin: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated admin %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().StringVar(&emailid, "email", "", "New email address")

	return cmd
}

// ---------- admin passwd ----------

func newAdminPasswdCmd(opts *rootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "passwd <id|username>",
		Short: "Set a new password for an admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), true)
				if err != nil {
					return err
				}
				password = pw
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				id, _, err := resolveAdmin(ctx, a.identity, args[0])
				if err != nil {
					return err
				}
				if err := a.identity.ChangeDetails(ctx, id, "", "", password); err != nil {
					return fmt.Errorf("change password: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Password changed for admin %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")

	return cmd
}

// ---------- admin remove ----------

func newAdminRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id|username>",
		Aliases: []string{"rm"},
		Short:   "Delete an admin account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				id, _, err := resolveAdmin(ctx, a.identity, args[0])
				if err != nil {
					return err
				}
				if !a.identity.Remove(ctx, id) {
					return fmt.Errorf("remove admin %d failed", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed admin %d\n", id)
				return nil
			})
		},
	}
}

// ---------- admin disable / enable ----------

func newAdminActiveCmd(opts *rootOptions, verb string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id|username>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " an admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				id, _, err := resolveAdmin(ctx, a.identity, args[0])
				if err != nil {
					return err
				}
				if err := a.identity.SetActive(ctx, id, active); err != nil {
					return fmt.Errorf("%s admin: %w", verb, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %d %sd\n", id, verb)
				return nil
			})
		},
	}
}
