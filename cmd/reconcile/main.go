package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fintrack/fintrack/internal/app"
	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/pkg/reconciliation"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func init() {
	// local .env is optional, FINTRACK_* variables may come from the environment instead
	_ = godotenv.Load()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logrusLevel, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(logrusLevel)
	}
}

var userFlag = &cli.IntFlag{
	Name:     "user",
	Usage:    "id of the user to reconcile",
	Required: true,
}

func main() {
	cliApp := &cli.App{
		Name:  "reconcile",
		Usage: "compare wallet balances with the recorded money flow",
		Commands: []*cli.Command{
			{
				Name:   "diagnose",
				Usage:  "print the reconciliation report as csv",
				Flags:  []cli.Flag{userFlag},
				Action: diagnose,
			},
			{
				Name:  "repair",
				Usage: "book a positive discrepancy as a balance adjustment income",
				Flags: []cli.Flag{
					userFlag,
					&cli.BoolFlag{Name: "confirm", Usage: "actually write the adjustment"},
				},
				Action: repair,
			},
			{
				Name:   "export",
				Usage:  "append the report to the configured Google spreadsheet",
				Flags:  []cli.Flag{userFlag},
				Action: export,
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withDependencies(c *cli.Context, fn func(ctx context.Context, cfg config.Application, deps *app.Dependencies) error) error {
	cfg, db, err := app.Bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()
	deps := app.BuildDependencies(db, cfg)
	if deps.AuditStream != nil {
		defer deps.AuditStream.Close()
	}
	return fn(c.Context, cfg, deps)
}

func diagnose(c *cli.Context) error {
	return withDependencies(c, func(ctx context.Context, _ config.Application, deps *app.Dependencies) error {
		report, err := deps.Oracle.Diagnose(ctx, c.Int("user"))
		if err != nil {
			return err
		}
		csv, err := deps.CsvReportRenderer.RenderReport(report)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(c.App.Writer, csv)
		return err
	})
}

func repair(c *cli.Context) error {
	return withDependencies(c, func(ctx context.Context, _ config.Application, deps *app.Dependencies) error {
		userId := c.Int("user")
		if !c.Bool("confirm") {
			report, err := deps.Oracle.Diagnose(ctx, userId)
			if err != nil {
				return err
			}
			warnInitialBalances(c, report)
			_, err = fmt.Fprintf(c.App.Writer, "discrepancy is %s, rerun with --confirm to book it\n", report.Discrepancy.StringFixed(2))
			return err
		}

		result, err := deps.Oracle.Repair(ctx, userId)
		if errors.Is(err, reconciliation.ErrNothingToRepair) {
			_, err = fmt.Fprintf(c.App.Writer, "nothing to repair, discrepancy is %s\n", result.Before.Discrepancy.StringFixed(2))
			return err
		}
		if err != nil {
			return err
		}
		warnInitialBalances(c, result.Before)
		_, err = fmt.Fprintf(c.App.Writer, "booked %s in %s as transaction %d\n",
			result.Transaction.Actual.StringFixed(2), result.Transaction.Period(), result.Transaction.Id)
		return err
	})
}

func warnInitialBalances(c *cli.Context, report reconciliation.Report) {
	if !report.RepairIncludesInitialBalances() {
		return
	}
	log.Warnf("user %d: the discrepancy of %s includes opening balances of %s; after repair the report will show drift of %s",
		report.UserId, report.Discrepancy.StringFixed(2), report.InitialBalances.StringFixed(2),
		report.InitialBalances.Neg().StringFixed(2))
	_, _ = fmt.Fprintf(c.App.ErrWriter, "warning: the discrepancy includes opening balances of %s, not only missing income\n",
		report.InitialBalances.StringFixed(2))
}

func export(c *cli.Context) error {
	return withDependencies(c, func(ctx context.Context, cfg config.Application, deps *app.Dependencies) error {
		exporter, err := reconciliation.NewSheetsExporter(ctx, cfg.Sheets)
		if err != nil {
			return err
		}
		report, err := deps.Oracle.Diagnose(ctx, c.Int("user"))
		if err != nil {
			return err
		}
		return exporter.Export(ctx, report)
	})
}
