// Package cmd holds the subcommands of ext2-recovery.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/masahiro331/go-ext2-recovery/ext2"
)

// stdout and stderr receive command output.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// commonFlags are shared by every command.
type commonFlags struct {
	debug           bool
	permissive      bool
	noGuard         bool
	dataBlockOrigin bool
}

func (c *commonFlags) setFlags(f *flag.FlagSet) {
	f.BoolVar(&c.debug, "debug", false, "enable debug logging.")
	f.BoolVar(&c.permissive, "permissive", false, "accept a superblock without the ext2 magic number.")
	f.BoolVar(&c.noGuard, "no-cycle-guard", false, "do not track visited directories while walking.")
	f.BoolVar(&c.dataBlockOrigin, "data-block-origin", false, "start block bitmaps at the first data block rather than block 0 of each group.")
}

func (c *commonFlags) logger() (*zap.Logger, error) {
	if c.debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// volume is an opened image together with its decoded filesystem.
type volume struct {
	v      *ext2.Volume
	fs     *ext2.FileSystem
	logger *zap.Logger
}

func (c *commonFlags) open(f *flag.FlagSet, readOnly bool) (*volume, error) {
	logger, err := c.logger()
	if err != nil {
		return nil, xerrors.Errorf("failed to build logger: %w", err)
	}
	path := f.Arg(0)
	v, err := ext2.OpenVolume(path, readOnly)
	if err != nil {
		return nil, err
	}
	if c.permissive && !ext2.Check(v) {
		logger.Warn("no ext2 magic number, continuing", zap.String("image", path))
	}
	fs, err := ext2.Open(v,
		ext2.WithLogger(logger.With(zap.String("image", path))),
		ext2.WithMagicCheck(!c.permissive),
		ext2.WithCycleGuard(!c.noGuard),
		ext2.WithDataBlockOrigin(c.dataBlockOrigin),
	)
	if err != nil {
		return nil, multierr.Append(xerrors.Errorf("failed to open %s: %w", path, err), v.Close())
	}
	return &volume{v: v, fs: fs, logger: logger}, nil
}

func (vol *volume) close() {
	_ = vol.logger.Sync()
	if err := vol.v.Close(); err != nil {
		fmt.Fprintf(stderr, "error closing volume: %v\n", err)
	}
}

// failure prints err and returns the failure status.
func failure(w io.Writer, err error) subcommands.ExitStatus {
	fmt.Fprintf(w, "error: %v\n", err)
	return subcommands.ExitFailure
}
