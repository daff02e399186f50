// Command helenium boots the micro-kernel. With no subcommand it runs
// the full service set until interrupted, matching tab-fuku's
// help/version/run dispatcher texture. attach and schedule are thin
// cobra-based subcommands layered on top for flag parsing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/hsiatein/helenium/internal/app"
	"github.com/hsiatein/helenium/internal/app/colors"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
)

const (
	appDesc     = "in-process service micro-kernel"
	helpText    = "Show help information"
	versionText = "Show version information"
	runText     = "Boot the kernel and run every registered service"
)

func main() {
	// A missing .env is not an error: HELENIUM_CONFIG and friends may
	// already be set in the real environment.
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		return runKernel()
	}

	switch args[0] {
	case "help", "--help", "-h":
		printHelp()
		return 0
	case "version", "--version", "-v":
		printVersion()
		return 0
	case "run", "--run", "-r":
		return runKernel()
	case "attach", "schedule":
		return runCobra(args)
	default:
		fmt.Fprintf(os.Stderr, "%s unknown command: %s\n", colors.Error("Error:"), args[0])
		printHelp()
		return 1
	}
}

func printHelp() {
	fmt.Printf("\n%s %s\n", colors.Title(config.AppName), colors.Success("v"+config.Version))
	fmt.Printf("%s\n\n", colors.Muted(appDesc))

	fmt.Printf("%s\n", colors.Subtitle("USAGE"))
	fmt.Printf("  %s %s\n\n", config.AppName, colors.Muted("[command] [options]"))

	fmt.Printf("%s\n", colors.Subtitle("COMMANDS"))
	fmt.Printf("  %-20s %s\n", colors.Primary("help"), colors.Muted(helpText))
	fmt.Printf("  %-20s %s\n", colors.Primary("version"), colors.Muted(versionText))
	fmt.Printf("  %-20s %s\n", colors.Primary("run"), colors.Muted(runText))
	fmt.Printf("  %-20s %s\n", colors.Primary("attach"), colors.Muted("Watch live service health in a terminal UI"))
	fmt.Printf("  %-20s %s\n", colors.Primary("schedule list"), colors.Muted("List scheduled tasks"))
	fmt.Printf("  %-20s %s\n\n", colors.Primary("schedule cancel"), colors.Muted("Cancel a scheduled task by ID"))
}

func printVersion() {
	fmt.Printf("\n%s %s\n", colors.Title(config.AppName), colors.Success("v"+config.Version))
	fmt.Printf("%s\n\n", colors.Muted(appDesc))
}

// runKernel loads the configuration, wires every registered service
// through fx, and blocks until an interrupt signal arrives.
func runKernel() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colors.Error("Error:"), err)
		return 1
	}

	log := logger.NewLogger(cfg)

	fxApp := fx.New(
		fx.WithLogger(fxLogger(cfg)),
		fx.Supply(cfg),
		fx.Provide(func() logger.Logger { return log }),
		app.Module,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fxApp.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colors.Error("Error:"), err)
		return 1
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Kernel.ShutdownBudget+cfg.Kernel.ShutdownBudget)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colors.Error("Error:"), err)
		return 1
	}

	return 0
}

func fxLogger(cfg *config.Config) func() fxevent.Logger {
	return func() fxevent.Logger {
		if cfg.Logging.Level == logger.DebugLevel {
			return &fxevent.ConsoleLogger{W: os.Stdout}
		}
		return fxevent.NopLogger
	}
}

// runCobra hands attach/schedule off to cobra, which owns their flag
// parsing; the hand-rolled dispatcher above only needs to recognize
// the verb and route here.
func runCobra(args []string) int {
	root := &cobra.Command{Use: config.AppName}
	root.AddCommand(newAttachCommand())
	root.AddCommand(newScheduleCommand())
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colors.Error("Error:"), err)
		return 1
	}
	return 0
}
