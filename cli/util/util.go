package cliutil

import (
	"context"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

// FlagVeryVerbose turns on debug logging for every dealbot subsystem
var FlagVeryVerbose = &cli.BoolFlag{
	Name:  "vv",
	Usage: "log at debug level",
}

// subsystems that log at info level by default
var subsystems = []string{
	"dealbot", "dealmaker", "addons", "pdp", "dataset", "ipnimonitor", "ipnifind",
	"migrations", "modules", "http", "cfg", "tracing",
}

// SetLogLevels applies the log levels selected on the command line
func SetLogLevels(cctx *cli.Context) {
	level := "INFO"
	if cctx.Bool(FlagVeryVerbose.Name) {
		level = "DEBUG"
	}
	for _, s := range subsystems {
		_ = logging.SetLogLevel(s, level)
	}
}

// ReqContext returns a context that is cancelled when the process is
// interrupted or terminated
func ReqContext(cctx *cli.Context) context.Context {
	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}
