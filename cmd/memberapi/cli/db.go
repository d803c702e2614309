package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/faucetdb/memberapi/internal/schema"
	"github.com/faucetdb/memberapi/internal/store"
)

func newDBCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Manage the admin database",
		Long:    "Write the table definition files and inspect the SQLite database.",
	}

	cmd.AddCommand(newDBInitCmd(opts))
	cmd.AddCommand(newDBStatusCmd(opts))

	return cmd
}

// ---------- db init ----------

func newDBInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default schema files and create the admins table",
		Long: `Write the built-in table definitions to the configured schema paths and
create the admins table if it does not exist yet. Existing schema files are
kept unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			files := []struct{ name, path string }{
				{schema.Admins, s.Schemas.Admins},
				{schema.Members, s.Schemas.Members},
				{schema.Memberships, s.Schemas.Memberships},
			}
			for _, f := range files {
				written, err := schema.WriteFile(f.name, f.path, force)
				if err != nil {
					return err
				}
				if written {
					fmt.Fprintf(out, "wrote %s\n", f.path)
				} else {
					fmt.Fprintf(out, "kept  %s\n", f.path)
				}
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				if !a.admins.Tables().TableExists(ctx, store.AdminTable) {
					return fmt.Errorf("admins table could not be created from %s", s.Schemas.Admins)
				}
				fmt.Fprintf(out, "database ready at %s\n", s.Database.Path)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing schema files")

	return cmd
}

// ---------- db status ----------

type dbStatus struct {
	Path   string   `json:"path"`
	Tables []string `json:"tables"`
	Admins int      `json:"admins"`
}

func newDBStatusCmd(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the database path, tables and admin count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app) error {
				tables, err := a.admins.Tables().ListTables(ctx)
				if err != nil {
					return err
				}
				n, err := a.admins.Count(ctx)
				if err != nil {
					return err
				}
				st := dbStatus{Path: a.conn.Path(), Tables: tables, Admins: n}

				out := cmd.OutOrStdout()
				if jsonOutput {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(st)
				}

				fmt.Fprintf(out, "Database: %s\n", st.Path)
				fmt.Fprintf(out, "Tables:   %v\n", st.Tables)
				fmt.Fprintf(out, "Admins:   %d\n\n", st.Admins)

				ts, err := a.admins.Tables().Describe(ctx, store.AdminTable)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "COLUMN\tTYPE\tNULLABLE\tPK")
				for _, c := range ts.Columns {
					fmt.Fprintf(tw, "%s\t%s\t%v\t%v\n", c.Name, c.Type, c.Nullable, c.IsPrimaryKey)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
