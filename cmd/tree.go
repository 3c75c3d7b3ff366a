package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/subcommands"
	"go.uber.org/multierr"

	"github.com/masahiro331/go-ext2-recovery/ext2"
)

// Tree implements subcommands.Command for the "tree" command.
type Tree struct {
	commonFlags
}

// Name implements subcommands.Command.
func (*Tree) Name() string {
	return "tree"
}

// Synopsis implements subcommands.Command.
func (*Tree) Synopsis() string {
	return "prints the directory tree of an ext2 image"
}

// Usage implements subcommands.Command.
func (*Tree) Usage() string {
	return "tree [flags] <image>\n"
}

// SetFlags implements subcommands.Command.
func (t *Tree) SetFlags(f *flag.FlagSet) {
	t.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (t *Tree) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	vol, err := t.open(f, true)
	if err != nil {
		return failure(stderr, err)
	}
	defer vol.close()

	err = vol.fs.Walk(ext2.SinkFunc(func(e ext2.Entry) error {
		return printEntry(stdout, e)
	}))
	if ext2.IsFatal(err) {
		return failure(stderr, err)
	}
	if skipped := multierr.Errors(err); len(skipped) > 0 {
		fmt.Fprintf(stderr, "%d subtree(s) skipped\n", len(skipped))
	}
	return subcommands.ExitSuccess
}

// printEntry writes one line per entry, indented with one dash per level.
func printEntry(w io.Writer, e ext2.Entry) error {
	name := e.Name
	if e.IsDir {
		name += "/"
	}
	_, err := fmt.Fprintf(w, "%s %s\n", strings.Repeat("-", e.Depth), name)
	return err
}
