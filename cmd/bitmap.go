package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/diskfs/go-diskfs/util/bitmap"
	"github.com/google/subcommands"
	"golang.org/x/xerrors"

	"github.com/masahiro331/go-ext2-recovery/ext2"
)

// Bitmap implements subcommands.Command for the "bitmap" command.
type Bitmap struct {
	commonFlags
	group int
}

// Name implements subcommands.Command.
func (*Bitmap) Name() string {
	return "bitmap"
}

// Synopsis implements subcommands.Command.
func (*Bitmap) Synopsis() string {
	return "prints the stored inode and block bitmaps of an ext2 image"
}

// Usage implements subcommands.Command.
func (*Bitmap) Usage() string {
	return "bitmap [flags] <image>\n"
}

// SetFlags implements subcommands.Command.
func (b *Bitmap) SetFlags(f *flag.FlagSet) {
	b.setFlags(f)
	f.IntVar(&b.group, "group", -1, "only print this group; all groups when negative.")
}

// Execute implements subcommands.Command.Execute.
func (b *Bitmap) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	vol, err := b.open(f, true)
	if err != nil {
		return failure(stderr, err)
	}
	defer vol.close()

	first, last := uint32(0), vol.fs.GroupCount()
	if b.group >= 0 {
		first, last = uint32(b.group), uint32(b.group)+1
	}
	for group := first; group < last; group++ {
		if err := printGroupBitmaps(stdout, vol.fs, group); err != nil {
			return failure(stderr, err)
		}
	}
	return subcommands.ExitSuccess
}

func printGroupBitmaps(w io.Writer, fs *ext2.FileSystem, group uint32) error {
	sb := fs.Superblock()

	inodes, err := fs.ReadInodeBitmap(group)
	if err != nil {
		return xerrors.Errorf("failed to read inode bitmap: %w", err)
	}
	fmt.Fprintf(w, "group %d inode bitmap:", group)
	if err := printBits(w, inodes, int(sb.InodePerGroup)); err != nil {
		return err
	}

	blocks, err := fs.ReadBlockBitmap(group)
	if err != nil {
		return xerrors.Errorf("failed to read block bitmap: %w", err)
	}
	fmt.Fprintf(w, "group %d block bitmap:", group)
	return printBits(w, blocks, int(sb.BlockPerGroup))
}

// printBits prints the first n bits of bm, eight per row.
func printBits(w io.Writer, bm *bitmap.Bitmap, n int) error {
	for i := 0; i < n; i++ {
		if i%8 == 0 {
			fmt.Fprintln(w)
		}
		set, err := bm.IsSet(i)
		if err != nil {
			return xerrors.Errorf("failed to read bit %d: %w", i, err)
		}
		bit := 0
		if set {
			bit = 1
		}
		fmt.Fprintf(w, "%d ", bit)
	}
	fmt.Fprintln(w)
	return nil
}
