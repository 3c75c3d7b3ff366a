package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/masahiro331/go-ext2-recovery/cmd"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Tree), "")
	subcommands.Register(new(cmd.Recover), "")
	subcommands.Register(new(cmd.Bitmap), "")
	subcommands.Register(new(cmd.Info), "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
