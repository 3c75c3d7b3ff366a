package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"github.com/masahiro331/go-ext2-recovery/ext2"
)

// Info implements subcommands.Command for the "info" command.
type Info struct {
	commonFlags
}

// Name implements subcommands.Command.
func (*Info) Name() string {
	return "info"
}

// Synopsis implements subcommands.Command.
func (*Info) Synopsis() string {
	return "prints the superblock and group descriptors of an ext2 image"
}

// Usage implements subcommands.Command.
func (*Info) Usage() string {
	return "info [flags] <image>\n"
}

// SetFlags implements subcommands.Command.
func (i *Info) SetFlags(f *flag.FlagSet) {
	i.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (i *Info) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	vol, err := i.open(f, true)
	if err != nil {
		return failure(stderr, err)
	}
	defer vol.close()

	printInfo(stdout, vol.fs)
	return subcommands.ExitSuccess
}

func printInfo(w io.Writer, fs *ext2.FileSystem) {
	sb := fs.Superblock()
	fmt.Fprintf(w, "volume name:       %s\n", sb.GetVolumeName())
	fmt.Fprintf(w, "uuid:              %s\n", sb.VolumeUUID())
	fmt.Fprintf(w, "magic:             0x%04X\n", sb.Magic)
	fmt.Fprintf(w, "revision:          %d\n", sb.RevLevel)
	fmt.Fprintf(w, "block size:        %d\n", fs.BlockSize())
	fmt.Fprintf(w, "inode size:        %d\n", sb.GetInodeSize())
	fmt.Fprintf(w, "inodes:            %d (%d free)\n", sb.InodeCount, sb.FreeInodeCount)
	fmt.Fprintf(w, "blocks:            %d (%d free)\n", sb.BlockCount, sb.FreeBlockCount)
	fmt.Fprintf(w, "first data block:  %d\n", sb.FirstDataBlock)
	fmt.Fprintf(w, "inodes per group:  %d\n", sb.InodePerGroup)
	fmt.Fprintf(w, "blocks per group:  %d\n", sb.BlockPerGroup)
	fmt.Fprintf(w, "groups:            %d\n", fs.GroupCount())

	for n, gd := range fs.GroupDescriptors() {
		fmt.Fprintf(w, "group %d: block bitmap %d, inode bitmap %d, inode table %d, %d free blocks, %d free inodes, %d dirs\n",
			n, gd.BlockBitmap, gd.InodeBitmap, gd.InodeTable, gd.FreeBlocksCount, gd.FreeInodesCount, gd.UsedDirsCount)
	}
}
