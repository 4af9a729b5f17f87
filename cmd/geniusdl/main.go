package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/vitaminmoo/geniusdl/internal/cli"
	"github.com/vitaminmoo/geniusdl/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c cli.CLI
	kctx := kong.Parse(&c,
		kong.Name("geniusdl"),
		kong.Description("Download dives from Mares GENIUS-family dive computers over Bluetooth LE."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	err := kctx.Run(&c)
	logging.Sync()
	kctx.FatalIfErrorf(err)
}
