package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"engagedl/pkg/auth"
	"engagedl/pkg/checkpoint"
	"engagedl/pkg/config"
	"engagedl/pkg/downloader"
	"engagedl/pkg/engagement"
	"engagedl/pkg/logger"
	"engagedl/pkg/metrics"
	"engagedl/pkg/retry"
	"engagedl/pkg/storage"
	"engagedl/pkg/ui"
	"github.com/spf13/cobra"
)

var (
	// Download command flags
	outputDest      string
	startOffset     int
	resumeDownload  bool
	forceRestart    bool
	checkpointEvery int
	includeMissing  bool
	ownedContent    bool
	endpointName    string
	accountName     string
	metricsAddr     string
	minInterval     time.Duration
	engagementTypes []string
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <ids-file>",
	Short: "Download engagement totals for the identifiers in a file",
	Long: `Download engagement totals for every identifier listed in <ids-file>,
one per line. Blank lines and lines starting with # are ignored.

Credentials are taken from, in order:
  - The account named with --account
  - ENGAGEDL_CONSUMER_KEY and ENGAGEDL_CONSUMER_SECRET, or api.consumer_key
    and api.consumer_secret in the config file
  - The default stored account (see 'engagedl auth login')

The output destination picks the sink: a .csv, .json or .db path, or a
redis:// URL. Results are saved every --checkpoint-every batches and once
more at the end. Ctrl-C saves what has been collected so far.`,
	Example: `  # Write totals to a CSV file
  engagedl download ids.txt --output totals.csv

  # Resume an interrupted download
  engagedl download ids.txt --output totals.csv --resume

  # Keep results in Redis and expose Prometheus metrics
  engagedl download ids.txt --output redis://localhost:6379/0 --metrics-addr :9090

  # Start over, ignoring the saved checkpoint
  engagedl download ids.txt --output totals.csv --force-restart`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&outputDest, "output", "o", "", "output destination (default: engagement.csv)")
	downloadCmd.Flags().IntVar(&startOffset, "start-offset", 0, "index of the first identifier to submit")
	downloadCmd.Flags().BoolVar(&resumeDownload, "resume", false, "resume from the last checkpoint")
	downloadCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint")
	downloadCmd.Flags().IntVar(&checkpointEvery, "checkpoint-every", downloader.DefaultCheckpointEvery, "persist results every N batches")
	downloadCmd.Flags().BoolVar(&includeMissing, "include-missing", false, "add zero rows for identifiers absent from a response")
	downloadCmd.Flags().BoolVar(&ownedContent, "owned", false, "request the engagement types available for owned content")
	downloadCmd.Flags().StringVar(&endpointName, "endpoint", "", "endpoint: totals, 28hr, historical or a URL")
	downloadCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	downloadCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	downloadCmd.Flags().DurationVar(&minInterval, "min-interval", downloader.MinInterval, "minimum time between requests (at least 10s)")
	downloadCmd.Flags().StringSliceVar(&engagementTypes, "engagement-types", nil, "engagement types to request")
}

func downloadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	set := cmd.Flags().Changed

	if set("output") {
		flags["output"] = outputDest
	}
	if set("start-offset") {
		flags["start-offset"] = startOffset
	}
	if set("checkpoint-every") {
		flags["checkpoint-every"] = checkpointEvery
	}
	if set("include-missing") {
		flags["include-missing"] = includeMissing
	}
	if set("owned") {
		flags["owned"] = ownedContent
	}
	if set("endpoint") {
		flags["endpoint"] = endpointName
	}
	if set("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	if set("min-interval") {
		flags["min-interval"] = minInterval
	}
	if set("engagement-types") {
		flags["engagement-types"] = engagementTypes
	}
	return flags
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, downloadFlags(cmd))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	log := logger.WithField("version", version)

	ids, err := readIDsFile(args[0])
	if err != nil {
		return err
	}
	ui.PrintInfo("Identifiers", fmt.Sprintf("%d from %s", len(ids), args[0]))

	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}

	endpoint, err := engagement.ResolveEndpoint(cfg.API.Endpoint)
	if err != nil {
		return err
	}
	types, err := requestedTypes(cfg.API)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := storage.Open(ctx, cfg.Storage.Output, storage.Options{
		RedisKey:    cfg.Storage.RedisKey,
		SQLiteTable: cfg.Storage.SQLiteTable,
	})
	if err != nil {
		return err
	}
	defer sink.Close()
	ui.PrintInfo("Output", sink.String())

	checkpoints, err := checkpoint.NewManager(cfg.Storage.Output)
	if err != nil {
		return err
	}

	plan, err := planStart(ctx, cfg, cmd.Flags().Changed("start-offset"), len(ids), sink, checkpoints)
	if err != nil {
		return err
	}
	if plan.checkpoint != nil && plan.checkpoint.Done() && plan.offset >= len(ids) {
		ui.PrintSuccess("Download already complete, nothing to resume")
		return nil
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.WithError(err).Warn("Metrics endpoint stopped")
			}
		}()
		ui.PrintInfo("Metrics", "http://"+cfg.Metrics.Addr+"/metrics")
	}

	tracker := ui.NewStatusTracker()
	notifier := ui.NewNotifierWith(nil)
	if notifications {
		notifier = ui.NewNotifier()
	}

	ui.PrintHighlight("[DOWNLOADING]")
	summary, err := downloader.Run(ctx, downloader.Options{
		Credentials: creds,
		ClientOptions: []engagement.Option{
			engagement.WithTokenURL(cfg.API.TokenURL),
			engagement.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		},
		IDs:             ids,
		StartOffset:     plan.offset,
		Sink:            sink,
		Endpoint:        endpoint,
		Types:           types,
		CheckpointEvery: cfg.Download.CheckpointEvery,
		IncludeMissing:  cfg.Download.IncludeMissing,
		MinInterval:     cfg.RateLimit.MinInterval,
		InitialRows:     plan.rows,
		Checkpoints:     checkpoints,
		Checkpoint:      plan.checkpoint,
		Retry:           retry.FromConfig(cfg.Retry, log),
		Progress:        tracker,
		Logger:          log,
	})
	tracker.Finish()

	if err != nil {
		notifier.DownloadFailed(err)
		if errors.Is(err, context.Canceled) && summary != nil {
			ui.PrintWarning("Interrupted, partial results saved", fmt.Sprintf("%d rows, resume at offset %d", len(summary.Rows), summary.NextOffset))
		}
		return err
	}

	if summary.FailedBatches > 0 {
		ui.PrintWarning("Some batches failed and were skipped", fmt.Sprintf("%d of %d", summary.FailedBatches, summary.Batches))
	}
	ui.PrintSuccess(fmt.Sprintf("Saved %d rows to %s in %s", len(summary.Rows), sink.String(), summary.Elapsed.Round(time.Second)))
	notifier.DownloadFinished(len(summary.Rows), summary.FailedBatches, sink.String())
	return nil
}

// startPlan is where a run begins and what it already has
type startPlan struct {
	offset     int
	rows       []storage.Row
	checkpoint *checkpoint.Checkpoint
}

// planStart applies --resume and --force-restart. An explicit start offset
// wins over the saved one.
func planStart(ctx context.Context, cfg *config.Config, offsetSet bool, total int, sink storage.Sink, checkpoints *checkpoint.Manager) (startPlan, error) {
	plan := startPlan{offset: cfg.Download.StartOffset}

	if forceRestart {
		if err := checkpoints.Delete(); err != nil {
			return plan, err
		}
		return plan, nil
	}

	cp, err := checkpoints.Load()
	if err != nil {
		return plan, err
	}

	if !resumeDownload {
		if cp != nil && !cp.Done() {
			ui.PrintWarning("A checkpoint exists for this output", fmt.Sprintf("offset %d of %d; use --resume to continue it", cp.NextOffset, cp.Total))
		}
		return plan, nil
	}

	rows, err := sink.Load(ctx)
	if err != nil {
		return plan, fmt.Errorf("load previous results: %w", err)
	}
	plan.rows = rows

	if cp == nil {
		ui.PrintWarning("No checkpoint found", fmt.Sprintf("continuing with %d saved rows from offset %d", len(rows), plan.offset))
		return plan, nil
	}
	if cp.Total != total {
		ui.PrintWarning("Identifier count changed since the checkpoint", fmt.Sprintf("was %d, now %d", cp.Total, total))
	}
	plan.checkpoint = cp
	if !offsetSet {
		plan.offset = cp.NextOffset
	}

	ui.PrintInfo("Resuming", fmt.Sprintf("offset %d of %d, %d rows already saved", plan.offset, total, len(rows)))
	return plan, nil
}

// resolveCredentials picks the account to authenticate with
func resolveCredentials(cfg *config.Config) (engagement.Credentials, error) {
	if accountName == "" && cfg.API.ConsumerKey != "" && cfg.API.ConsumerSecret != "" {
		logger.Info("Using credentials from configuration")
		return engagement.Credentials{Key: cfg.API.ConsumerKey, Secret: cfg.API.ConsumerSecret}, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return engagement.Credentials{}, fmt.Errorf("initialize credential manager: %w", err)
	}

	account, err := manager.Retrieve(accountName)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			fmt.Println("\nTo store credentials securely, run:")
			fmt.Println("  engagedl auth login")
			fmt.Println("\nOr set environment variables:")
			fmt.Println("  export ENGAGEDL_CONSUMER_KEY=...")
			fmt.Println("  export ENGAGEDL_CONSUMER_SECRET=...")
		}
		return engagement.Credentials{}, err
	}

	logger.WithField("account", account.Name).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Name)
	return account.Credentials(), nil
}

// requestedTypes honors explicit types first, then the owned-content set
func requestedTypes(api config.APIConfig) ([]engagement.Type, error) {
	if len(api.EngagementTypes) > 0 {
		return engagement.ParseTypes(api.EngagementTypes)
	}
	if api.Owned {
		return engagement.OwnedTypes(), nil
	}
	return engagement.DefaultTypes(), nil
}
