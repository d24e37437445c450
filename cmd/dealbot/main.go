package main

import (
	"os"

	"github.com/filecoin-project/dealbot/build"
	cliutil "github.com/filecoin-project/dealbot/cli/util"
	"github.com/filecoin-project/dealbot/cmd"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("dealbot")

func main() {
	app := &cli.App{
		Name:                 "dealbot",
		Usage:                "Makes storage deals with every known provider and verifies that they are indexed",
		EnableBashCompletion: true,
		Version:              build.UserVersion(),
		Flags: []cli.Flag{
			cmd.FlagRepo,
			cmd.FlagJson,
			cliutil.FlagVeryVerbose,
		},
		Commands: []*cli.Command{
			initCmd,
			runCmd,
			dealsCmd,
			providersCmd,
		},
	}
	app.Setup()

	if err := app.Run(os.Args); err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func before(cctx *cli.Context) error {
	cliutil.SetLogLevels(cctx)
	return nil
}
