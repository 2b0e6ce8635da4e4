package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexxia-ai/sqlflow/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the stored databases",
	}
	cmd.AddCommand(newDBListCmd())
	cmd.AddCommand(newDBImportCmd())
	cmd.AddCommand(newDBSetActiveCmd())
	return cmd
}

func newDBListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored databases and their tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := store.NewManager(cfg.DataDir)
			infos, err := manager.List(cmd.Context())
			if err != nil {
				return err
			}

			active := manager.ActiveKey()
			for _, info := range infos {
				marker := " "
				if info.Key == active {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", marker, info.Key, info.Path)
				for _, table := range info.Tables {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s: %d rows\n", table.Name, table.RowCount)
				}
			}
			return nil
		},
	}
}

func newDBImportCmd() *cobra.Command {
	var tableName string

	cmd := &cobra.Command{
		Use:   "import <file> <name>",
		Short: "Import a .db, .sql or .csv file as a custom database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, name := args[0], args[1]
			manager := store.NewManager(cfg.DataDir)

			var (
				dst string
				err error
			)
			switch {
			case strings.HasSuffix(src, ".db"), strings.HasSuffix(src, ".sqlite"), strings.HasSuffix(src, ".sqlite3"):
				dst, err = manager.ImportDatabase(src, name)
			case strings.HasSuffix(src, ".sql"):
				dst, err = manager.ImportSQL(cmd.Context(), src, name)
			case strings.HasSuffix(src, ".csv"):
				dst, err = manager.ImportCSV(cmd.Context(), src, name, tableName)
			default:
				return fmt.Errorf("unsupported file type: %s", src)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %q (%s)\n", src, name, dst)
			return nil
		},
	}

	cmd.Flags().StringVar(&tableName, "table", "", "table name for CSV imports (defaults to the file name)")
	return cmd
}

func newDBSetActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-active <name>",
		Short: "Switch the active database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := store.NewManager(cfg.DataDir)
			if err := manager.SetActive(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "active database is now %q\n", args[0])
			return nil
		},
	}
}
