package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/rabbitsim/internal/backup"
	"github.com/nvandessel/rabbitsim/internal/config"
)

// backupDir is the configured archive directory, or <root>/.rabbitsim/backups.
func backupDir(cmd *cobra.Command, cfg *config.Config) string {
	if cfg.Backup.Dir != "" {
		return cfg.Backup.Dir
	}
	root, _ := cmd.Flags().GetString("root")
	return backup.DefaultDir(root)
}

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive every stored batch to a compressed file",
		Long: `Archive the complete results store (batches, runs and monthly series) to a
checksummed, gzip-compressed file.

Default location: <root>/.rabbitsim/backups/rabbitsim-backup-YYYYMMDD-HHMMSS.mmm.json.gz
Old archives are pruned according to the backup.retention settings
(default: keep the last 10).

Examples:
  rabbitsim backup                             # Archive to the default location
  rabbitsim backup --output runs.json.gz       # Archive to a specific file
  rabbitsim backup list                        # List archives
  rabbitsim backup verify <file>               # Check an archive's checksum`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			policy, err := cfg.RetentionPolicy()
			if err != nil {
				return fmt.Errorf("backup retention: %w", err)
			}
			if outputPath == "" {
				outputPath = backup.GeneratePath(backupDir(cmd, cfg))
			}

			st, err := openStore(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			archive, err := backup.Backup(cmd.Context(), st, outputPath)
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}

			var pruned []string
			if policy != nil {
				pruned, err = backup.ApplyRetention(filepath.Dir(outputPath), policy)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
				}
			}

			var size int64
			if fi, err := os.Stat(outputPath); err == nil {
				size = fi.Size()
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]any{
					"path":       outputPath,
					"batches":    len(archive.Batches),
					"runs":       archive.RunCount(),
					"size_bytes": size,
					"pruned":     pruned,
				})
			}
			fmt.Fprintf(out, "Backup created: %d batches, %s runs (%s)\n",
				len(archive.Batches), humanize.Comma(int64(archive.RunCount())), humanize.Bytes(uint64(size)))
			fmt.Fprintf(out, "  Path: %s\n", outputPath)
			if len(pruned) > 0 {
				fmt.Fprintf(out, "  Pruned %d old backup(s)\n", len(pruned))
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file (default: auto-generated in the backup directory)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)
	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archives in the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dir := backupDir(cmd, cfg)
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return printJSON(out, map[string]any{
					"backups":     backups,
					"total_count": len(backups),
					"directory":   dir,
				})
			}
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(out, "Backups in %s:\n", dir)
			var total int64
			for _, b := range backups {
				total += b.Size
				fmt.Fprintf(out, "  %s  %9s  %4d batches  %9s runs  %s\n",
					b.CreatedAt.Local().Format(time.DateTime), humanize.Bytes(uint64(b.Size)),
					b.Batches, humanize.Comma(int64(b.Runs)), filepath.Base(b.Path))
			}
			fmt.Fprintf(out, "Total: %d backups, %s\n", len(backups), humanize.Bytes(uint64(total)))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify an archive's SHA-256 checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.Verify(path)
			out := cmd.OutOrStdout()
			if jsonOut {
				view := map[string]any{"file": path, "valid": err == nil}
				if err != nil {
					view["error"] = err.Error()
				} else {
					view["header"] = header
				}
				if perr := printJSON(out, view); perr != nil {
					return perr
				}
				return err
			}
			if err != nil {
				fmt.Fprintf(out, "FAILED: %v\n  File: %s\n", err, path)
				return fmt.Errorf("checksum verification failed: %w", err)
			}
			fmt.Fprintf(out, "OK: checksum verified (%d batches, %s runs, created %s)\n",
				header.BatchCount, humanize.Comma(int64(header.RunCount)), humanize.Time(header.CreatedAt))
			fmt.Fprintf(out, "  File: %s\n", path)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore stored batches from an archive",
		Long: `Restore batches from an archive created by 'rabbitsim backup'. The checksum
is verified before the store is touched.

Modes:
  merge   - Keep existing batches; skip archived batches already present (default)
  replace - Delete every stored batch first, then restore

Examples:
  rabbitsim restore .rabbitsim/backups/rabbitsim-backup-20260301-120000.000.json.gz
  rabbitsim restore runs.json.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			modeFlag, _ := cmd.Flags().GetString("mode")

			mode, err := backup.ParseRestoreMode(modeFlag)
			if err != nil {
				return err
			}

			st, err := openStoreFromFlags(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			result, err := backup.Restore(cmd.Context(), st, args[0], mode)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, result)
			}
			fmt.Fprintf(out, "Restore complete (mode: %s)\n", mode)
			fmt.Fprintf(out, "  Batches: %d restored, %d skipped\n", len(result.Restored), len(result.Skipped))
			if len(result.Deleted) > 0 {
				fmt.Fprintf(out, "  Replaced %d existing batch(es)\n", len(result.Deleted))
			}
			return nil
		},
	}
	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}
