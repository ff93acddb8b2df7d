package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/KeyQTO/internal/app"
	"github.com/turtacn/KeyQTO/internal/application/reporting"
	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/config"
	"github.com/turtacn/KeyQTO/internal/infrastructure/drawing"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
)

type runOptions struct {
	name    string
	report  string
	out     string
	prices  string
	offline bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <annotations.json|->",
		Short: "Run a takeoff over an annotation export",
		Long: `Run recognises components in an annotation export, applies deductions
and prints the report.  The export is a JSON document {"name", "annotations"}
or a bare annotation array; "-" reads stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runTakeoff(cmd, cliCtx, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "takeoff name (default: document name or file name)")
	f.StringVar(&opts.report, "report", "markdown", "report format: markdown|csv|materials|components|json")
	f.StringVar(&opts.out, "out", "", "write the report to this file instead of stdout")
	f.StringVar(&opts.prices, "prices", "", "price table path (overrides config)")
	f.BoolVar(&opts.offline, "offline", false, "ignore configured storage, messaging and caches")
	return cmd
}

func runTakeoff(cmd *cobra.Command, cliCtx *CLIContext, path string, opts *runOptions) error {
	format, err := reporting.ParseFormat(opts.report)
	if err != nil {
		return err
	}

	cfg := *cliCtx.Config
	if opts.prices != "" {
		cfg.Pricing.TablePath = opts.prices
	}
	if opts.offline {
		goOffline(&cfg)
	}

	ctx, cancel := withTimeout(cmd, cliCtx)
	defer cancel()

	src := drawing.NewFileSource(path).WithStdin(cmd.InOrStdin())
	doc, err := src.Document(ctx)
	if err != nil {
		return err
	}

	c, err := app.New(ctx, &cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer c.Close()

	for _, s := range doc.Skipped {
		cliCtx.Logger.Warn("annotation skipped",
			logging.Int("index", s.Index),
			logging.String("content", s.Content),
			logging.String("reason", s.Reason))
	}
	req := &takeoff.RunRequest{
		Name:        doc.Name,
		Source:      doc.Source,
		Annotations: doc.Annotations,
		Warnings:    doc.Warnings(),
	}
	if opts.name != "" {
		req.Name = opts.name
	}
	t, err := c.Takeoffs.Run(ctx, req)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := reporting.NewRenderer().Render(w, t, format); err != nil {
		return err
	}

	cliCtx.Logger.Info("takeoff finished",
		logging.String("id", t.ID),
		logging.Int("components", len(t.Components)),
		logging.Int("abnormal", t.Summary.AbnormalCount))
	if opts.out != "" {
		PrintSuccess(cmd, "takeoff "+t.ID+" ("+strconv.Itoa(len(t.Components))+" components) written to "+opts.out)
	}
	return nil
}

// goOffline disables every section that needs a running service.
func goOffline(cfg *config.Config) {
	cfg.Redis.Enabled = false
	cfg.Database.Enabled = false
	cfg.Kafka.Enabled = false
	cfg.MinIO.Enabled = false
	cfg.Pricing.Cache = false
	cfg.Pricing.Watch = false
	cfg.Verification.CacheVerdicts = false
}

//Personal.AI order the ending
