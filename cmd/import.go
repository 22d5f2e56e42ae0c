package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"hsmimport/config"
	"hsmimport/internal/hsm"
	"hsmimport/internal/logging"
	"hsmimport/internal/metrics"
	"hsmimport/internal/s3client"
	"hsmimport/internal/supervisor"
	"hsmimport/pkg/utils"
)

const commandName = "hsmimport"

func runImport(cmd *cobra.Command, args []string) error {
	root, listFile := args[0], args[1]

	batchSize, err := strconv.Atoi(args[2])
	if err != nil || batchSize <= 0 {
		return fail(cmd, int(syscall.EINVAL), fmt.Errorf("batch size must be a positive integer, got %q", args[2]))
	}

	opts := importOptions(cmd, root, listFile, batchSize)

	log := logging.Component("import")

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		return runPlan(cmd, supervisor.New(opts, nil, nil, log))
	}

	if err := cfg.Validate(); err != nil {
		return fail(cmd, int(syscall.EINVAL), err)
	}
	backend, err := newBackend(cfg)
	if err != nil {
		return fail(cmd, int(syscall.EIO), err)
	}

	if isVerbose(cmd) {
		cmd.Printf("Importing %s into %s (%s backend, batch size %d, %d workers)\n",
			listFile, root, cfg.Backend, batchSize, opts.Workers)
	}

	m := metrics.New()
	sup := supervisor.New(opts, hsm.NewStubImporter(backend, log), m, log)

	result, err := sup.Run(cmd.Context())
	if err != nil {
		code := int(syscall.EIO)
		var setupErr *supervisor.SetupError
		if errors.As(err, &setupErr) {
			code = int(setupErr.Code)
		}
		return fail(cmd, code, err)
	}

	if cfg.MetricsFile != "" {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			log.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	if err := utils.WriteJSON(cmd.OutOrStdout(), result); err != nil {
		log.Error("failed to print result", "error", err)
	}

	if isVerbose(cmd) {
		cmd.Printf("Imported %d, skipped %d of %d entries in %d batches\n",
			result.Imported, result.Skipped, result.Entries, result.Batches)
	}

	if code := result.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: result.FirstErr}
	}
	return nil
}

func runPlan(cmd *cobra.Command, sup *supervisor.Supervisor) error {
	plan, err := sup.Plan()
	if err != nil {
		code := int(syscall.EIO)
		var setupErr *supervisor.SetupError
		if errors.As(err, &setupErr) {
			code = int(setupErr.Code)
		}
		return fail(cmd, code, err)
	}

	if err := utils.WriteJSON(cmd.OutOrStdout(), plan); err != nil {
		return fail(cmd, int(syscall.EIO), err)
	}
	if plan.PlanError != "" {
		return &ExitError{Code: 1, Err: errors.New(plan.PlanError)}
	}
	return nil
}

func importOptions(cmd *cobra.Command, root, listFile string, batchSize int) supervisor.Options {
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}
	if maxBatches, _ := cmd.Flags().GetInt("max-batches"); maxBatches >= 0 {
		cfg.MaxBatches = maxBatches
	}
	return supervisor.Options{
		Root:          root,
		ListFile:      listFile,
		BatchSize:     batchSize,
		MaxBatches:    cfg.MaxBatches,
		EntryCapacity: cfg.EntryCapacity,
		MaxBatchBytes: cfg.MaxBatchBytes,
		Workers:       cfg.Workers,
		ImportRate:    cfg.ImportRate,
		VerifyMarker:  cfg.VerifyMarker,
	}
}

func newBackend(cfg *config.Config) (hsm.Backend, error) {
	switch cfg.Backend {
	case config.BackendS3:
		client, err := s3client.New(cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendLocal:
		return hsm.LocalBackend{Dir: cfg.ArchiveDir}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// fail prints err as a JSON error response and wraps it with the exit code.
func fail(cmd *cobra.Command, code int, err error) error {
	utils.WriteError(cmd.OutOrStdout(), err, commandName, code)
	return &ExitError{Code: code, Err: err}
}
