package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"

	"hsmimport/cmd"
	"hsmimport/config"
	"hsmimport/internal/logging"
	"hsmimport/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	cnf, err := config.Load()
	if err != nil {
		utils.PrintError(err, "hsmimport", int(syscall.EINVAL))
		return int(syscall.EINVAL)
	}

	closer := logging.Setup(logging.Config{
		Format:    cnf.LogFormat,
		Level:     cnf.LogLevel,
		File:      cnf.LogFile,
		MaxSizeMB: cnf.LogMaxSizeMB,
		MaxFiles:  cnf.LogMaxFiles,
	})
	defer closer.Close()

	err = cmd.Execute(context.Background(), cnf)
	var exitErr *cmd.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		slog.Error("Failed to execute command", "error", err)
		utils.PrintError(err, "hsmimport", 1)
	}
	return cmd.ExitCode(err)
}
