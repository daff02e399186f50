package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hsiatein/helenium/internal/attach"
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/kernel"
	"github.com/hsiatein/helenium/internal/proto"
	"github.com/hsiatein/helenium/internal/services"
)

// newAttachCommand boots the full kernel in-process and drives a
// read-only TUI off its Health resource. There is no separate daemon
// to connect to: attach is a second view onto the same boot, not a
// client of a long-lived server process.
func newAttachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attach",
		Short: "Watch live service health in a terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach()
		},
	}
}

func runAttach() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg)

	factories := services.Factories(cfg, log)
	k, err := kernel.New(cfg, factories, log)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- k.Run(runCtx) }()

	clientHandle, err := k.Bus.Register("attach", proto.RoleStandard)
	if err != nil {
		cancel()
		<-done
		return err
	}

	m := attach.New(runCtx, k.Bus, clientHandle)
	_, runErr := tea.NewProgram(m).Run()

	cancel()
	<-done
	return runErr
}
