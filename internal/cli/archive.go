package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/qbench/qbench/internal/ingest"
	"github.com/qbench/qbench/internal/storage"
)

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and restore archived upload files",
	}
	cmd.AddCommand(newArchiveListCommand(rootOpts))
	cmd.AddCommand(newArchiveFetchCommand(rootOpts))
	return cmd
}

func openArchive(cmd *cobra.Command, opts *RootOptions) (*session, *storage.Archive, error) {
	s, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return nil, nil, err
	}
	if !s.cfg.Archive.Enabled {
		s.Close()
		return nil, nil, fmt.Errorf("archiving is not enabled in the configuration")
	}
	archive, err := storage.OpenArchive(cmd.Context(), s.cfg.Archive)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, archive, nil
}

func newArchiveListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "list <performance|problems>",
		Short:     "List archived uploads of one kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{ingest.KindPerformance, ingest.KindProblems},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, archive, err := openArchive(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			paths, err := archive.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sort.Strings(paths)
			return s.emit(paths, func(w io.Writer) error {
				for _, p := range paths {
					fmt.Fprintln(w, p)
				}
				return nil
			})
		},
	}
}

func newArchiveFetchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dir         string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "fetch <performance|problems> [object...]",
		Short: "Restore archived uploads to a local directory",
		Long: `Restore archived uploads to a local directory, decompressing them.
With no objects given, every archived upload of the kind is restored. Files
already present in the directory are skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, archive, err := openArchive(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			paths := args[1:]
			if len(paths) == 0 {
				if paths, err = archive.List(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			result, err := storage.NewBatchFetcher(archive, concurrency, dir).Fetch(cmd.Context(), paths)
			if err != nil {
				return err
			}

			failed := make(map[string]string, len(result.Errors))
			for p, e := range result.Errors {
				failed[p] = e.Error()
			}
			report := map[string]interface{}{
				"fetched": result.Fetched,
				"skipped": result.Skipped,
				"files":   result.LocalPaths,
				"errors":  failed,
			}
			if err := s.emit(report, func(w io.Writer) error {
				fmt.Fprintf(w, "Fetched %d, skipped %d, failed %d\n", result.Fetched, result.Skipped, len(failed))
				for p, e := range failed {
					fmt.Fprintf(w, "  %s: %s\n", p, e)
				}
				return nil
			}); err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d archived files could not be fetched", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "restored", "target directory")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel downloads")
	return cmd
}
