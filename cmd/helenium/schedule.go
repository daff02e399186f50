package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hsiatein/helenium/internal/app/colors"
	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/kernel"
	"github.com/hsiatein/helenium/internal/kernelsvc"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/runtime"
	"github.com/hsiatein/helenium/internal/scheduler"
)

// newScheduleCommand puts a plain CLI surface on the Scheduler's
// ListTaskRequest/CancelTaskRequest messages, which are not
// consent-gated (only the schedule tool is): list/cancel boot the same kernel
// any "run" invocation would, limited to the Hub and Scheduler, Ask
// the running Scheduler directly, then shut down. Helenium has no
// separate daemon/attach transport, so a CLI-driven schedule edit is,
// like everything else here, just another in-process boot.
func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect or edit scheduled tasks",
	}
	cmd.AddCommand(newScheduleListCommand(), newScheduleCancelCommand())
	return cmd
}

func newScheduleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheduler(func(ctx context.Context, b bus.Bus, h *bus.Handle) error {
				tasks, err := bus.Ask(ctx, b, h, proto.ScheduleService, func(reply chan map[uuid.UUID]proto.ScheduledTask) scheduler.ListTaskRequest {
					return scheduler.ListTaskRequest{Reply: reply}
				})
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Println(colors.Muted("no scheduled tasks"))
					return nil
				}
				for id, t := range tasks {
					next := "unscheduled"
					if t.NextTrigger != nil {
						next = t.NextTrigger.Format(time.RFC3339)
					}
					fmt.Printf("%s  %-30s next=%s\n", colors.Primary(id.String()), t.Description, colors.Muted(next))
				}
				return nil
			})
		},
	}
}

func newScheduleCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a scheduled task by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id: %w", err)
			}
			return withScheduler(func(ctx context.Context, b bus.Bus, h *bus.Handle) error {
				return bus.Tell(b, h, proto.ScheduleService, scheduler.CancelTaskRequest{ID: id}, true)
			})
		},
	}
}

// withScheduler boots a Hub+Scheduler kernel, waits for the Scheduler
// to report healthy, runs fn against a client bus handle, then tears
// the kernel down.
func withScheduler(fn func(ctx context.Context, b bus.Bus, h *bus.Handle) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg)

	factories := []runtime.Factory{hub.Factory(), scheduler.Factory(cfg, log)}
	k, err := kernel.New(cfg, factories, log)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- k.Run(runCtx) }()

	clientHandle, err := k.Bus.Register("cli", proto.RoleStandard)
	if err != nil {
		cancel()
		<-done
		return err
	}

	waitCtx, waitCancel := context.WithTimeout(runCtx, 5*time.Second)
	defer waitCancel()
	if _, err := bus.Ask(waitCtx, k.Bus, clientHandle, proto.KernelService, func(reply chan struct{}) kernelsvc.WaitForRequest {
		return kernelsvc.WaitForRequest{Name: proto.ScheduleService, Reply: reply}
	}); err != nil {
		cancel()
		<-done
		return fmt.Errorf("scheduler did not become ready: %w", err)
	}

	fnCtx, fnCancel := context.WithTimeout(runCtx, 5*time.Second)
	defer fnCancel()
	fnErr := fn(fnCtx, k.Bus, clientHandle)

	cancel()
	<-done
	return fnErr
}
