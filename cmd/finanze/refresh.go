package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/refresh"
)

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Silently refresh stale connected entities",
		Long: `Run one unattended refresh pass: every connected entity whose data is
older than the staleness threshold is fetched silently, without prompts or
fresh logins. Failures are recorded and skipped.`,
		RunE: runRefresh,
	}
	cmd.Flags().Bool("now", false, "Skip the settle delay")
	cmd.Flags().Duration("threshold", 0, "Override the staleness threshold")
	return cmd
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	application, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	entities, err := loadEntities(ctx, application, false)
	if err != nil {
		return err
	}

	policy := refresh.Policy{
		Threshold: viper.GetDuration("refresh.threshold"),
		Allow:     viper.GetStringSlice("refresh.allow"),
		Deny:      viper.GetStringSlice("refresh.deny"),
	}
	if override, _ := cmd.Flags().GetDuration("threshold"); override > 0 {
		policy.Threshold = override
	}

	settleDelay := viper.GetDuration("refresh.settle_delay")
	if now, _ := cmd.Flags().GetBool("now"); now {
		settleDelay = 0
	}

	scheduler := refresh.NewScheduler(application.orchestrator, policy, settleDelay)

	var bar *progressbar.ProgressBar
	scheduler.OnProgress = func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Refreshing entities"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}

	refs := make([]*model.Entity, len(entities))
	for i := range entities {
		refs[i] = &entities[i]
	}

	start := time.Now()
	attempted := scheduler.Run(ctx, refs)
	if bar != nil {
		_ = bar.Finish()
	}

	if attempted == 0 {
		fmt.Println("Nothing to refresh.")
		return nil
	}

	failures := 0
	for _, e := range refs {
		if record, ok := application.bookkeeping.Last(e.ID); ok && !record.Success {
			failures++
		}
	}

	fmt.Printf("Refreshed %d entities in %s (%d failed).\n",
		attempted, time.Since(start).Round(time.Second), failures)
	return nil
}
