package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	cliutil "github.com/filecoin-project/dealbot/cli/util"
	"github.com/filecoin-project/dealbot/cmd"
	"github.com/filecoin-project/dealbot/db"
	"github.com/filecoin-project/dealbot/node/repo"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var dealsCmd = &cli.Command{
	Name:  "deals",
	Usage: "Inspect stored deals",
	Subcommands: []*cli.Command{
		dealsListCmd,
		dealsShowCmd,
	},
}

var dealsListCmd = &cli.Command{
	Name:  "list",
	Usage: "List the most recent deals",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "offset",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  "limit",
			Value: 50,
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "only list deals with this provider",
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

		var deals []*types.Deal
		if cctx.IsSet("provider") {
			deals, err = store.Deals.ByProvider(ctx, cctx.String("provider"))
		} else {
			deals, err = store.Deals.List(ctx, cctx.Int("offset"), cctx.Int("limit"))
		}
		if err != nil {
			return err
		}

		if cctx.Bool(cmd.FlagJson.Name) {
			return cmd.PrintJson(deals)
		}

		w := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CREATED\tDEAL\tPROVIDER\tSTATUS\tSIZE\tIPNI\tERROR")
		for _, d := range deals {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				humanize.Time(d.CreatedAt),
				d.ID,
				d.ProviderAddress,
				colorStatus(d.Status),
				humanize.IBytes(uint64(d.FileSize)),
				d.Ipni.Status,
				d.ErrorMessage)
		}
		return w.Flush()
	},
}

var dealsShowCmd = &cli.Command{
	Name:      "show",
	Usage:     "Show a deal",
	ArgsUsage: "<deal uuid>",
	Before:    before,
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("must specify deal uuid")
		}
		id, err := uuid.Parse(cctx.Args().First())
		if err != nil {
			return fmt.Errorf("parsing deal uuid %s: %w", cctx.Args().First(), err)
		}

		ctx := cliutil.ReqContext(cctx)
		store, closer, err := openStore(cctx)
		if err != nil {
			return err
		}
		defer closer()

		deal, err := store.Deals.ByID(ctx, id)
		if err != nil {
			return err
		}
		if cctx.Bool(cmd.FlagJson.Name) {
			return cmd.PrintJson(deal)
		}

		w := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
		row := func(k string, v interface{}) {
			_, _ = fmt.Fprintf(w, "%s\t%v\n", k, v)
		}
		row("ID", deal.ID)
		row("Created", deal.CreatedAt.Format(time.RFC3339))
		row("Provider", deal.ProviderAddress)
		row("Wallet", deal.WalletAddress)
		row("File", fmt.Sprintf("%s (%s)", deal.FileName, humanize.IBytes(uint64(deal.FileSize))))
		row("Status", colorStatus(deal.Status))
		row("Services", deal.ServiceTypes)
		if deal.DataSetID != nil {
			row("Data set", *deal.DataSetID)
		}
		if deal.PieceCID != nil {
			row("Piece CID", deal.PieceCID)
		}
		if deal.PieceID != nil {
			row("Piece ID", *deal.PieceID)
		}
		if deal.TransactionHash != "" {
			row("Transaction", deal.TransactionHash)
		}
		row("Ingest latency", time.Duration(deal.IngestLatencyMs)*time.Millisecond)
		row("Ingest throughput", humanize.IBytes(uint64(deal.IngestThroughputBps))+"/s")
		row("Chain latency", time.Duration(deal.ChainLatencyMs)*time.Millisecond)
		row("Deal latency", time.Duration(deal.DealLatencyMs)*time.Millisecond)
		if deal.ErrorMessage != "" {
			row("Error", fmt.Sprintf("%s (%s)", deal.ErrorMessage, deal.ErrorCode))
		}
		row("IPNI", deal.Ipni.Status)
		if deal.Ipni.RootCID != nil {
			row("Root CID", deal.Ipni.RootCID)
		}
		row("Verified CIDs", fmt.Sprintf("%d/%d", deal.Ipni.VerifiedCidsCount, deal.Ipni.VerifiedCidsCount+deal.Ipni.UnverifiedCidsCount))
		if deal.Ipni.Error != "" {
			row("IPNI error", deal.Ipni.Error)
		}
		return w.Flush()
	},
}

// openStore opens the deals database of the repo without starting a node
func openStore(cctx *cli.Context) (*db.Store, func(), error) {
	r, err := repo.New(cctx.String(cmd.FlagRepo.Name))
	if err != nil {
		return nil, nil, err
	}
	cfg, err := r.Config()
	if err != nil {
		return nil, nil, err
	}
	sqldb, err := db.Open(cctx.Context, r.DBPath(cfg))
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(sqldb), func() { _ = sqldb.Close() }, nil
}

func colorStatus(status dealstatus.Status) string {
	switch status {
	case dealstatus.DealCreated:
		return color.GreenString(status.String())
	case dealstatus.Failed:
		return color.RedString(status.String())
	default:
		return color.YellowString(status.String())
	}
}
