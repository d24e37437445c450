package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common"
	cliutil "github.com/filecoin-project/dealbot/cli/util"
	"github.com/filecoin-project/dealbot/cmd"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/urfave/cli/v2"
)

var providersCmd = &cli.Command{
	Name:  "providers",
	Usage: "Manage the provider directory",
	Subcommands: []*cli.Command{
		providersListCmd,
		providersAddCmd,
		providersSetActiveCmd,
	},
}

var providersListCmd = &cli.Command{
	Name:  "list",
	Usage: "List providers",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "include inactive providers",
		},
	},
	Before: before,
	Action: func(cctx *cli.Context) error {
		ctx := cliutil.ReqContext(cctx)
		store, closer, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer closer()

		var provs []types.ProviderInfo
		if cctx.Bool("all") {
			provs, err = store.Providers.ListAll(ctx)
		} else {
			provs, err = store.Providers.List(ctx)
		}
		if err != nil {
			return err
		}

		if cctx.Bool(cmd.FlagJson.Name) {
			return cmd.PrintJson(provs)
		}

		w := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ADDRESS\tNAME\tACTIVE\tSERVICE URL\tUPDATED")
		for _, p := range provs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", p.Address, p.Name, p.IsActive, p.ServiceURL, humanize.Time(p.UpdatedAt))
		}
		return w.Flush()
	},
}

var providersAddCmd = &cli.Command{
	Name:      "add",
	Usage:     "Add a provider to the directory, or update it",
	ArgsUsage: "<address> <service url>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name: "name",
		},
		&cli.StringFlag{
			Name: "description",
		},
	},
	Before: before,
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify provider address and service url")
		}

		if !common.IsHexAddress(cctx.Args().Get(0)) {
			return fmt.Errorf("%q is not an ethereum address", cctx.Args().Get(0))
		}

		ctx := cliutil.ReqContext(cctx)
		store, closer, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer closer()

		prov := &types.ProviderInfo{
			Address:     cctx.Args().Get(0),
			ServiceURL:  cctx.Args().Get(1),
			Name:        cctx.String("name"),
			Description: cctx.String("description"),
			IsActive:    true,
		}
		if err := store.Providers.Upsert(ctx, prov); err != nil {
			return err
		}
		fmt.Printf("Added provider %s\n", prov.Address)
		return nil
	},
}

var providersSetActiveCmd = &cli.Command{
	Name:      "set-active",
	Usage:     "Include or exclude a provider from deal making",
	ArgsUsage: "<address> <true|false>",
	Before:    before,
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("must specify provider address and true or false")
		}

		var active bool
		switch cctx.Args().Get(1) {
		case "true":
			active = true
		case "false":
		default:
			return fmt.Errorf("expected true or false, got %s", cctx.Args().Get(1))
		}

		ctx := cliutil.ReqContext(cctx)
		store, closer, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return store.Providers.SetActive(ctx, cctx.Args().Get(0), active)
	},
}
