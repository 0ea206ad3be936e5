// Package cli implements the s3dbmod command line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lhsnam/s3-db-modifier/internal/scrub"
	"github.com/lhsnam/s3-db-modifier/internal/storage"
)

const (
	defaultBucket    = "io-pipeline-references"
	defaultSrcPrefix = "sourmash-databases/k21/"
	defaultDstPrefix = "sourmash-databases-2506/k21/"
	defaultWorkDir   = "./WORK"

	// protectedPrefix is the reference tree the tool must never write into.
	protectedPrefix = "sourmash-databases/"
)

type options struct {
	ids       []string
	excludes  []string
	bucket    string
	srcPrefix string
	dstPrefix string
	region    string
	workDir   string
	endpoint  string
	timeout   time.Duration
	quiet     bool
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "s3dbmod",
		Short: "Remove identifiers from sourmash reference databases in S3",
		Long: `s3dbmod copies a tree of sourmash reference databases from one S3
prefix to another, removing every record and signature that matches a
set of identifiers along the way. The source tree is never modified.

CSV databases are filtered row by row. ZIP databases are filtered
through their embedded SOURMASH-MANIFEST.csv: records whose name
carries a requested identifier are dropped and the signature files
their md5 fingerprints point at are left out of the rebuilt archive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.ids, "ids", "i", nil,
		"identifiers to remove (repeatable or comma-separated)")
	flags.StringSliceVarP(&opts.excludes, "exclude-db", "e", nil,
		"skip databases whose name contains this substring")
	flags.StringVarP(&opts.bucket, "bucket", "b", defaultBucket,
		"S3 bucket holding both trees")
	flags.StringVarP(&opts.srcPrefix, "src-prefix", "s", defaultSrcPrefix,
		"source prefix to read")
	flags.StringVarP(&opts.dstPrefix, "dst-prefix", "d", defaultDstPrefix,
		"destination prefix to write")
	flags.StringVarP(&opts.region, "region", "r", "",
		"AWS region (defaults to the SDK's resolution)")
	flags.StringVarP(&opts.workDir, "workdir", "w", defaultWorkDir,
		"local scratch directory")
	flags.StringVar(&opts.endpoint, "endpoint", "",
		"custom S3 endpoint (implies path-style addressing)")
	flags.DurationVar(&opts.timeout, "timeout", storage.DefaultTimeout,
		"per-request HTTP timeout")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false,
		"suppress progress output")
	_ = cmd.MarkFlagRequired("ids")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	ids := scrub.NewIDSet(opts.ids...)
	if len(ids) == 0 {
		return fmt.Errorf("no identifiers given")
	}

	src, dst, err := validatePrefixes(opts.srcPrefix, opts.dstPrefix)
	if err != nil {
		return err
	}

	logLevel := slog.LevelWarn
	if opts.quiet {
		logLevel = slog.LevelError
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	storeOpts := []storage.Option{storage.WithLogger(log)}
	if opts.region != "" {
		storeOpts = append(storeOpts, storage.WithRegion(opts.region))
	}
	if opts.endpoint != "" {
		storeOpts = append(storeOpts,
			storage.WithEndpoint(opts.endpoint),
			storage.WithForcePathStyle(true))
	}
	if opts.timeout > 0 {
		storeOpts = append(storeOpts, storage.WithTimeout(opts.timeout))
	}
	if !opts.quiet {
		storeOpts = append(storeOpts, storage.WithProgress(newTransferNotice))
	}

	client, err := storage.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	runnerOpts := []scrub.RunnerOption{scrub.WithLogger(log)}
	if !opts.quiet {
		runnerOpts = append(runnerOpts,
			scrub.WithStepTracker(stageNotice{}),
			scrub.WithDetectionHook(func(id, db, _ string) {
				fmt.Printf("✓ Detected %s in %s\n", id, db)
			}))
	}
	runner := scrub.NewRunner(client, runnerOpts...)

	summary, runErr := runner.Run(ctx, scrub.RunSpec{
		Bucket:     opts.bucket,
		SrcPrefix:  src,
		DstPrefix:  dst,
		IDs:        ids,
		ExcludeDBs: opts.excludes,
		WorkDir:    opts.workDir,
	})
	if summary != nil {
		printSummary(summary, opts.quiet)
	}
	return runErr
}

func printSummary(s *scrub.Summary, quiet bool) {
	switch {
	case s.SourceEmpty():
		fmt.Println("No objects under that prefix.")
		return
	case s.AllExcluded():
		fmt.Println("After excluding, no keys remain.")
		return
	}

	if !quiet {
		fmt.Printf("\n%d processed, %d skipped, %d failed\n\n",
			s.Processed, s.Skipped, s.Failed)
	}
	_ = s.Report.WriteTable(os.Stdout, isTerminal(os.Stdout))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
