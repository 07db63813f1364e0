package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qbench/qbench/internal/ingest"
	"github.com/qbench/qbench/internal/storage"
	"github.com/qbench/qbench/internal/store"
)

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <performance|problems> <file>",
		Short: "Validate and load a result CSV file",
		Long: `Validate a CSV file against its schema and load it into the database.

performance  performance reports with their systems, solvers, compilation
             steps and metric values
problems     problem instances with their problems and graphs

Every upload is recorded in the upload log, and archived when archiving is
enabled in the configuration.`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{ingest.KindPerformance, ingest.KindProblems},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, rootOpts, args[0], args[1])
		},
	}
}

func runUpload(cmd *cobra.Command, opts *RootOptions, kind, path string) error {
	if kind != ingest.KindPerformance && kind != ingest.KindProblems {
		return fmt.Errorf("unknown upload kind %q: must be %s or %s", kind, ingest.KindPerformance, ingest.KindProblems)
	}
	ctx := cmd.Context()
	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	uploader := ingest.New(s.store,
		ingest.WithStagingDSN(s.cfg.Staging.DSN),
		ingest.WithLogger(s.logger))
	summary, err := uploader.Upload(ctx, kind, path)
	if err != nil {
		return err
	}

	rec := &store.UploadRecord{
		UploadID:   uuid.New().String(),
		Kind:       kind,
		Filename:   filepath.Base(path),
		RowsRead:   summary.RowsRead,
		Status:     summary.Status,
		TopMessage: summary.TopMessage,
	}
	if s.cfg.Archive.Enabled {
		archive, err := storage.OpenArchive(ctx, s.cfg.Archive)
		if err != nil {
			return err
		}
		entry, err := archive.Put(ctx, kind, rec.UploadID, path)
		if err != nil {
			s.logger.Warn("Archiving upload failed", zap.Error(err))
		} else {
			rec.ArchivePath = entry.Path
			rec.Fingerprint = entry.Fingerprint
		}
	}
	if rec.Fingerprint == "" {
		if rec.Fingerprint, _, err = storage.FingerprintFile(path); err != nil {
			return err
		}
	}
	if err := s.store.RecordUpload(ctx, rec); err != nil {
		return err
	}

	return s.emit(summary, func(w io.Writer) error {
		fmt.Fprintf(w, "%s\n", summary.TopMessage)
		for _, m := range summary.Messages {
			fmt.Fprintf(w, "  [%s] %s\n", m.MessageType, m.Text)
		}
		return nil
	})
}
