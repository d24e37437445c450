package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	cliutil "github.com/filecoin-project/dealbot/cli/util"
	"github.com/filecoin-project/dealbot/cmd"
	"github.com/filecoin-project/dealbot/dataset"
	"github.com/filecoin-project/dealbot/ipnimonitor"
	"github.com/filecoin-project/dealbot/node"
	"github.com/filecoin-project/dealbot/node/config"
	"github.com/filecoin-project/dealbot/node/repo"
	"github.com/filecoin-project/dealbot/storagemarket"
	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/urfave/cli/v2"
)

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Make a deal with every active provider, then wait for ipni verification",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "cdn",
			Usage: "make deals with the cdn addon (overrides Dealmaking.EnableCDN)",
		},
		&cli.BoolFlag{
			Name:  "ipni",
			Usage: "make deals with the ipni addon (overrides Dealmaking.EnableIpni)",
		},
		&cli.DurationFlag{
			Name:  "wait-timeout",
			Usage: "how long to wait for ipni verification to finish after the deals are made",
			Value: 75 * time.Minute,
		},
		&cli.StringFlag{
			Name:  "min-size",
			Usage: "the smallest payload to fetch, eg 1MiB (overrides Dataset.MinSize)",
		},
		&cli.StringFlag{
			Name:  "max-size",
			Usage: "the largest payload to fetch, eg 10MiB (overrides Dataset.MaxSize)",
		},
		&cli.BoolFlag{
			Name:  "serve",
			Usage: "keep serving the http endpoint after the run until interrupted",
		},
	},
	Before: before,
	Action: func(cctx *cli.Context) error {
		ctx := cliutil.ReqContext(cctx)

		r, err := repo.New(cctx.String(cmd.FlagRepo.Name))
		if err != nil {
			return err
		}

		var cfg *config.Dealbot
		var dm *storagemarket.DealMaker
		var monitor *ipnimonitor.Monitor
		stop, err := node.New(ctx, node.Repo(r), node.Output(&cfg, &dm, &monitor))
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := stop(stopCtx); err != nil {
				log.Warnw("stopping node", "err", err)
			}
		}()

		if err := applySizeFlags(cctx, cfg); err != nil {
			return err
		}

		payload, err := fetchPayload(ctx, cfg)
		if err != nil {
			return err
		}
		log.Infow("fetched payload", "name", payload.Name, "size", humanize.IBytes(uint64(payload.Size)))

		dealCfg := types.DealConfig{
			Payload:    *payload,
			EnableCDN:  cfg.Dealmaking.EnableCDN,
			EnableIpni: cfg.Dealmaking.EnableIpni,
		}
		if cctx.IsSet("cdn") {
			dealCfg.EnableCDN = cctx.Bool("cdn")
		}
		if cctx.IsSet("ipni") {
			dealCfg.EnableIpni = cctx.Bool("ipni")
		}

		report, err := dm.RunBatch(ctx, dealCfg)
		if err != nil {
			return err
		}

		if monitor.Active() > 0 {
			fmt.Printf("Waiting for %d ipni verification tasks\n", monitor.Active())
			waitCtx, cancel := context.WithTimeout(ctx, cctx.Duration("wait-timeout"))
			err := monitor.Wait(waitCtx)
			cancel()
			if errors.Is(err, context.DeadlineExceeded) {
				log.Warnw("timed out waiting for ipni verification", "active", monitor.Active())
			}
		}

		if err := printReport(cctx, report, monitor); err != nil {
			return err
		}

		if cctx.Bool("serve") && cfg.Metrics.ListenAddress != "" {
			fmt.Printf("Serving on %s, interrupt to exit\n", cfg.Metrics.ListenAddress)
			<-ctx.Done()
		}
		return nil
	},
}

func applySizeFlags(cctx *cli.Context, cfg *config.Dealbot) error {
	if cctx.IsSet("min-size") {
		min, err := units.RAMInBytes(cctx.String("min-size"))
		if err != nil {
			return fmt.Errorf("parsing min-size: %w", err)
		}
		cfg.Dataset.MinSize = min
	}
	if cctx.IsSet("max-size") {
		max, err := units.RAMInBytes(cctx.String("max-size"))
		if err != nil {
			return fmt.Errorf("parsing max-size: %w", err)
		}
		cfg.Dataset.MaxSize = max
	}
	if cfg.Dataset.MinSize <= 0 || cfg.Dataset.MaxSize < cfg.Dataset.MinSize {
		return fmt.Errorf("invalid payload size range [%s, %s]",
			humanize.IBytes(uint64(cfg.Dataset.MinSize)), humanize.IBytes(uint64(cfg.Dataset.MaxSize)))
	}
	return nil
}

func fetchPayload(ctx context.Context, cfg *config.Dealbot) (*types.Payload, error) {
	var primary dataset.Source
	if len(cfg.Dataset.URLs) > 0 {
		primary = dataset.NewHTTPSource(cfg.Dataset.URLs, time.Duration(cfg.Dataset.FetchTimeout))
	}
	fallback := dataset.NewRandomSource(time.Now().UnixNano())
	return dataset.Fetch(ctx, primary, fallback, cfg.Dataset.MinSize, cfg.Dataset.MaxSize)
}

type reportDeal struct {
	*types.Deal
	Verification *types.Verification `json:",omitempty"`
}

type reportJson struct {
	Groups   int
	Deals    []reportDeal
	Failures []storagemarket.DealFailure
}

func printReport(cctx *cli.Context, report *storagemarket.BatchReport, monitor *ipnimonitor.Monitor) error {
	deals := make([]reportDeal, 0, len(report.Deals))
	for _, d := range report.Deals {
		rd := reportDeal{Deal: d}
		if t, ok := monitor.Task(d.ID); ok {
			select {
			case <-t.Done():
				v := t.Verification()
				rd.Verification = &v
			default:
			}
		}
		deals = append(deals, rd)
	}

	if cctx.Bool(cmd.FlagJson.Name) {
		return cmd.PrintJson(reportJson{Groups: report.Groups, Deals: deals, Failures: report.Failures})
	}

	fmt.Printf("Made %d deals in %d groups, %d failed\n\n", len(report.Deals), report.Groups, len(report.Failures))

	w := tabwriter.NewWriter(os.Stdout, 4, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROVIDER\tDEAL\tPIECE CID\tSIZE\tTHROUGHPUT\tDEAL LATENCY\tIPNI")
	for _, d := range deals {
		pieceCid := ""
		if d.PieceCID != nil {
			pieceCid = d.PieceCID.String()
		}
		ipni := "-"
		if d.Verification != nil {
			ipni = colorIpni(d.Verification.Status)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s/s\t%s\t%s\n",
			d.ProviderAddress,
			d.ID,
			pieceCid,
			humanize.IBytes(d.PieceSize),
			humanize.IBytes(uint64(d.IngestThroughputBps)),
			(time.Duration(d.DealLatencyMs) * time.Millisecond).String(),
			ipni)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		fmt.Println()
		for _, f := range report.Failures {
			fmt.Printf("%s %s: %s\n", color.RedString("FAILED"), f.Provider, f.Error)
		}
	}
	return nil
}

func colorIpni(status dealstatus.IpniStatus) string {
	switch status {
	case dealstatus.IpniVerified:
		return color.GreenString(status.String())
	case dealstatus.IpniFailed:
		return color.RedString(status.String())
	default:
		return color.YellowString(status.String())
	}
}
