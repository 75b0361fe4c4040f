// Package directory implements the "directory add" subcommand
// (SPEC_FULL.md §3.8 "Folder-policy interactive prompt" supplement):
// a non-blocking alternative to original_source/'s interactive first-run
// prompt for registering a new RecordingFolder and its ignore flags.
// Grounded on cmd/directory/directory.go's Command(settings) shape.
package directory

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chboishabba/tircorder-JOBBIE/internal/config"
	"github.com/chboishabba/tircorder-JOBBIE/internal/logging"
	"github.com/chboishabba/tircorder-JOBBIE/internal/store"
)

// Command builds the "directory" parent command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage recording folders tracked by the state store",
	}
	cmd.AddCommand(addCommand(), listCommand())
	return cmd
}

func addCommand() *cobra.Command {
	var ignoreTranscribing, ignoreConverting, recursive bool

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Register a new recording folder (or update its policy flags)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			st, err := store.Open(cfg.StatePath, logging.Global())
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			defer st.Close()

			id, err := st.UpsertFolderRecursive(args[0], ignoreTranscribing, ignoreConverting, recursive)
			if err != nil {
				return fmt.Errorf("registering folder: %w", err)
			}
			// UpsertFolderRecursive applies flags only on first insert.
			if err := st.SetFolderFlags(id, ignoreTranscribing, ignoreConverting, recursive); err != nil {
				return fmt.Errorf("updating folder flags: %w", err)
			}
			fmt.Printf("folder %q registered as id %d (ignore_transcribing=%v, ignore_converting=%v, recursive=%v)\n",
				args[0], id, ignoreTranscribing, ignoreConverting, recursive)
			return nil
		},
	}

	cmd.Flags().BoolVar(&ignoreTranscribing, "ignore-transcribing", false, "Never enqueue this folder's audio for transcription")
	cmd.Flags().BoolVar(&ignoreConverting, "ignore-converting", false, "Never enqueue this folder's WAVs for conversion")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "Scan this folder's subdirectories as well as its immediate children")
	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered recording folders and their policy flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nil)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			st, err := store.Open(cfg.StatePath, logging.Global())
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			defer st.Close()

			folders, err := st.ListFolders()
			if err != nil {
				return fmt.Errorf("listing folders: %w", err)
			}
			for _, f := range folders {
				fmt.Printf("%d\t%s\tignore_transcribing=%v\tignore_converting=%v\trecursive=%v\n",
					f.ID, f.FolderPath, f.IgnoreTranscribing, f.IgnoreConverting, f.Recursive)
			}
			return nil
		},
	}
}
