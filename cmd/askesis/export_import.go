package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askesis/askesis/internal/exportimport"
	"github.com/askesis/askesis/internal/migrations"
	"github.com/askesis/askesis/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write a full backup document (JSON, or YAML with --yaml)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yamlFormat, _ := cmd.Flags().GetBool("yaml")

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		if err := a.pers.FlushSaveBuffer(cmd.Context()); err != nil {
			return fmt.Errorf("askesis: flush before export: %w", err)
		}

		var data []byte
		if yamlFormat || strings.HasSuffix(args[0], ".yaml") || strings.HasSuffix(args[0], ".yml") {
			data, err = exportimport.ExportYAML(a.actions.State())
		} else {
			data, err = exportimport.ExportJSON(a.actions.State())
		}
		if err != nil {
			return err
		}
		return os.WriteFile(args[0], data, 0o644)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Replace local state with a backup document, running it through migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.shutdown(cmd.Context())

		var imported *model.AppState
		if strings.HasSuffix(args[0], ".yaml") || strings.HasSuffix(args[0], ".yml") {
			imported, err = exportimport.ImportYAML(data)
		} else {
			imported, err = exportimport.ImportJSON(data)
		}
		if err != nil {
			return err
		}
		if imported.Version < model.CurrentVersion {
			reencoded, err := exportimport.ExportJSON(imported)
			if err != nil {
				return err
			}
			imported, err = migrations.MigrateState(reencoded, model.CurrentVersion, a.log)
			if err != nil {
				return fmt.Errorf("askesis: migrate imported document: %w", err)
			}
		}

		*a.actions.State() = *imported
		a.pers.SaveState(a.actions.State())
		return a.pers.FlushSaveBuffer(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().Bool("yaml", false, "write YAML instead of JSON regardless of file extension")
	rootCmd.AddCommand(exportCmd, importCmd)
}
