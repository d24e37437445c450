package main

import (
	"fmt"

	"github.com/filecoin-project/dealbot/cmd"
	"github.com/filecoin-project/dealbot/node/config"
	"github.com/filecoin-project/dealbot/node/repo"
	"github.com/urfave/cli/v2"
)

var initCmd = &cli.Command{
	Name:  "init",
	Usage: "Initialize a dealbot repository",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "wallet",
			Usage:    "the address of the wallet that pays for deals",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "record-keeper",
			Usage: "the address of the contract that records data sets",
		},
		&cli.StringFlag{
			Name:  "indexer-url",
			Usage: "the IPNI indexer that deals are verified against",
		},
	},
	Before: before,
	Action: func(cctx *cli.Context) error {
		r, err := repo.New(cctx.String(cmd.FlagRepo.Name))
		if err != nil {
			return err
		}

		cfg := config.DefaultDealbot()
		cfg.Wallet.Address = cctx.String("wallet")
		if cctx.IsSet("record-keeper") {
			cfg.PDP.RecordKeeper = cctx.String("record-keeper")
		}
		if cctx.IsSet("indexer-url") {
			cfg.IpniVerification.IndexerURL = cctx.String("indexer-url")
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		fmt.Printf("Initializing dealbot repo at %s\n", r.Path())
		if err := r.Init(cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote config to %s\n", r.ConfigPath())
		return nil
	},
}
