// Command mvmhost loads the configured bytecode image, runs its start logic
// with the standard host functions linked in, and frees the VM.
//
// Exit status is 0 on success, 1 if the image cannot be read, and the VM's
// error code if the VM cannot be created.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/mvmhost/mvmhost"
	"github.com/mvmhost/mvmhost/config"
	"github.com/mvmhost/mvmhost/host"
	"github.com/mvmhost/mvmhost/types"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(run(context.Background(), cfg, cfg.NewLogger(), host.NewContext))
}

// run drives one VM lifecycle and returns the process exit status.
// newContext is only called once the image has been read.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, newContext func() *host.Context) int {
	bytecode, err := mvmhost.ReadBytecodeFile(cfg.Bytecode)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Bytecode).Msg("cannot load bytecode")
		return 1
	}
	logger.Debug().Str("path", cfg.Bytecode).Int("size", len(bytecode)).Str("checksum", bytecode.Checksum().String()).Msg("bytecode loaded")

	hostCtx := newContext()
	defer hostCtx.Release()

	vm, err := mvmhost.Create(ctx, bytecode, hostCtx, host.DefaultTable(),
		mvmhost.WithConfig(cfg.Runtime),
		mvmhost.WithLogger(logger),
		mvmhost.WithErrorHandler(mvmhost.DefaultErrorHandler),
	)
	if err != nil {
		code := types.CodeOf(err, types.ErrUnexpected)
		logger.Error().Err(err).Int32("code", int32(code)).Msg("cannot create vm")
		return int(code)
	}
	defer func() {
		if err := vm.Free(ctx); err != nil {
			logger.Warn().Err(err).Msg("free vm")
		}
	}()

	for _, entry := range hostCtx.LogEntries() {
		logger.Info().Str("entry", entry).Msg("print")
	}
	return 0
}
