package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/config"
	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/version"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/audit"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/aws"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/formatter"
	"github.com/ranas-mukminov/cloud-iam-optimizer/pkg/utils"
)

var (
	profile      string
	region       string
	output       string
	ageThreshold int
	workers      int
	retries      int
	showVersion  bool
	debug        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "iamaudit",
		Short: "CLI tool to audit IAM users for security misconfiguration",
		Long: `iamaudit scans every IAM user in an AWS account for missing MFA,
stale access keys, and full-administrator privilege granted directly,
via groups, or through inline policy documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				info := version.Get()
				fmt.Printf("iamaudit version %s (built: %s, commit: %s, %s)\n",
					info.Version, info.BuildDate, info.GitCommit, info.GoVersion)
				return nil
			}

			if debug {
				log.SetLevel(log.DebugLevel)
			}

			return runAudit()
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVarP(&profile, "profile", "p", "", "AWS profile to use (default: environment)")
	rootCmd.Flags().StringVarP(&region, "region", "r", "", "AWS region for the IAM endpoint (IAM itself is global)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")
	rootCmd.Flags().IntVar(&ageThreshold, "age-threshold", 0,
		fmt.Sprintf("Days before an active access key counts as old (default %d)", audit.DefaultAgeThresholdDays))
	rootCmd.Flags().IntVar(&workers, "workers", 0,
		fmt.Sprintf("Number of users audited in parallel (default %d)", audit.DefaultWorkers))
	rootCmd.Flags().IntVar(&retries, "retries", 0,
		fmt.Sprintf("Attempts per throttled API call (default %d)", audit.DefaultRetryAttempts))
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAudit() error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q (expected table or json)", output)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	resolvedRegion := cfg.Region(region, utils.GetDefaultRegion())
	if !utils.IsValidRegion(resolvedRegion) {
		fmt.Printf("Warning: unknown region '%s', using %s\n", resolvedRegion, utils.GetDefaultRegion())
		resolvedRegion = utils.GetDefaultRegion()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := aws.NewGateway(ctx, cfg.Profile(profile), resolvedRegion)
	if err != nil {
		return err
	}

	engine := audit.New(gw, audit.Config{
		AgeThresholdDays: config.IntOr(ageThreshold, cfg.AgeThresholdDays, audit.DefaultAgeThresholdDays),
		Workers:          config.IntOr(workers, cfg.Workers, audit.DefaultWorkers),
		RetryAttempts:    config.IntOr(retries, cfg.RetryAttempts, audit.DefaultRetryAttempts),
	})

	scanStartTime := time.Now()

	var s *spinner.Spinner
	if output == "table" {
		s = spinner.New(spinner.CharSets[9], 200*time.Millisecond)
		s.Suffix = " Auditing IAM users ..."
		s.Start()
	}

	audits, runErr := engine.Run(ctx)
	scanDuration := time.Since(scanStartTime)

	if s != nil {
		s.FinalMSG = fmt.Sprintf("✓ [%d users audited] IAM audit completed in %.2f seconds\n",
			len(audits), scanDuration.Seconds())
		s.Stop()
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Println("Warning: audit interrupted; results below are partial")
		} else {
			return fmt.Errorf("audit failed: %w", runErr)
		}
	}

	switch output {
	case "json":
		return formatter.WriteAuditJSON(os.Stdout, audits, scanStartTime)
	default:
		formatter.FormatAuditTable(os.Stdout, audits, scanStartTime, scanDuration)
		formatter.PrintAuditSummary(os.Stdout, audits)
	}

	return nil
}
