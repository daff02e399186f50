// Package attach is the helenium attach TUI: a read-only bubbletea
// program that subscribes to the Hub's Health resource and renders
// every registered service's lifecycle state as it changes. Grounded
// on tab-fuku's internal/app/ui/services.Model, repurposed from
// OS-process status display to in-process service status display.
package attach

import (
	"context"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hsiatein/helenium/internal/bus"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/proto"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyles = map[proto.HealthStatus]lipgloss.Style{
		proto.Starting:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		proto.Healthy:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		proto.Unhealthy: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		proto.Stopping:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		proto.Stopped:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

// healthMsg carries a fresh snapshot into the bubbletea update loop.
type healthMsg struct{ health proto.KernelHealth }

// Model is the attach TUI's bubbletea model. Read-only: it never sends
// anything back onto the bus besides its initial subscription.
type Model struct {
	ctx    context.Context
	b      bus.Bus
	h      *bus.Handle
	health proto.KernelHealth
	err    error
}

// New returns a Model for h, ready to hand to tea.NewProgram. The
// subscription to the Health resource happens once, in Init, so New
// itself does no bus I/O.
func New(ctx context.Context, b bus.Bus, h *bus.Handle) Model {
	return Model{ctx: ctx, b: b, h: h}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.subscribe(), m.waitForUpdate())
}

func (m Model) subscribe() tea.Cmd {
	return func() tea.Msg {
		_ = bus.Tell(m.b, m.h, proto.HubService, hub.SubscribeRequest{
			Name:       proto.ResourceHealth,
			Subscriber: m.h.Name,
		}, false)
		return nil
	}
}

// waitForUpdate blocks on the handle's own mailbox for the next
// ResourceCommand carrying a HealthPayload, translating it into a
// tea.Msg the Update loop can react to.
func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-m.ctx.Done():
				return tea.Quit()
			case env, ok := <-m.h.Recv():
				if !ok {
					return tea.Quit()
				}
				cmd, ok := env.Payload.(proto.ResourceCommand)
				if !ok {
					continue
				}
				hp, ok := cmd.Resource.Payload.(proto.HealthPayload)
				if !ok {
					continue
				}
				return healthMsg{health: hp.Health}
			}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case healthMsg:
		m.health = msg.health
		return m, m.waitForUpdate()
	}
	return m, nil
}

func (m Model) View() string {
	names := make([]string, 0, len(m.health.Services))
	for name := range m.health.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	out := titleStyle.Render("helenium") + " " + mutedStyle.Render(fmt.Sprintf("kernel: %s", m.health.Kernel)) + "\n\n"
	for _, name := range names {
		svc := m.health.Services[name]
		style, ok := statusStyles[svc.Status]
		if !ok {
			style = mutedStyle
		}
		last := "never"
		if svc.LastSignal != nil {
			last = svc.LastSignal.Format(time.Kitchen)
		}
		out += fmt.Sprintf("  %-20s %-12s %s\n", name, style.Render(string(svc.Status)), mutedStyle.Render("last signal "+last))
	}
	out += "\n" + mutedStyle.Render("q to quit")
	return out
}
