package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"verityengine/pkg/verity"
)

var (
	dashHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BC34A"))
	dashMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	dashError  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	dashOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type dashboardModel struct {
	mgr      *verity.Manager
	id       string
	bar      progress.Model
	an       *verity.Analytics
	cov      *verity.CoverageResult
	findings []verity.Finding
	err      error
}

func newDashboardModel(mgr *verity.Manager, id string) dashboardModel {
	return dashboardModel{mgr: mgr, id: id, bar: progress.New(progress.WithDefaultGradient())}
}

func (m dashboardModel) Init() tea.Cmd { return tick() }

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		an, err := m.mgr.Analytics(m.id)
		if err != nil {
			m.err = err
			return m, tick()
		}
		cov, _ := m.mgr.Coverage(m.id)
		findings, _ := m.mgr.Findings(m.id, 0)
		m.an, m.cov, m.findings = an, cov, findings
		return m, tick()
	}
	return m, nil
}

func (m dashboardModel) View() string {
	if m.err != nil {
		return dashError.Render(fmt.Sprintf("error: %v\n", m.err))
	}
	if m.an == nil {
		return dashMuted.Render("compiling...\n")
	}

	var b strings.Builder
	b.WriteString(dashHeader.Render(fmt.Sprintf(" campaign %s ", m.id[:8])) + "  ")
	stateStyle := dashMuted
	if m.an.State == verity.PhaseComplete {
		stateStyle = dashOK
	} else if m.an.State == verity.PhaseAborted {
		stateStyle = dashError
	}
	b.WriteString(stateStyle.Render(strings.ToUpper(string(m.an.State))) + "\n\n")

	if m.cov != nil {
		b.WriteString(dashHeader.Render("coverage") + "\n")
		b.WriteString(m.bar.ViewAs(m.cov.Summary.Percent/100) + "\n\n")
	}

	b.WriteString(fmt.Sprintf("steps: %-8d findings: %-6d elapsed: %s\n",
		m.an.Steps, m.an.Findings, m.an.Elapsed.Round(time.Second)))
	b.WriteString(fmt.Sprintf("finding rate/1k: %.2f   coverage velocity: %.3f/s   adaptation: %.2f\n\n",
		m.an.FindingRatePer1000Steps, m.an.CoverageVelocity, m.an.AdaptationEffectiveness))

	if len(m.findings) > 0 {
		b.WriteString(dashHeader.Render("findings") + "\n")
		for _, f := range m.findings {
			b.WriteString(dashError.Render(fmt.Sprintf(" #%d %s: %s\n", f.Seqno, f.Signal.Action, f.Signal.Message)))
		}
		b.WriteString("\n")
	}

	b.WriteString(dashMuted.Render("[q] quit"))
	return b.String()
}

// runWithDashboard drives a campaign's DutLoaded/Running transition in the
// background while a bubbletea dashboard polls Analytics/Coverage/Findings
// on a fixed tick.
func runWithDashboard(mgr *verity.Manager, id string) error {
	go func() {
		if err := mgr.PhaseTransition(id, verity.PhaseDutLoaded); err != nil {
			return
		}
		_ = mgr.PhaseTransition(id, verity.PhaseRunning)
	}()

	p := tea.NewProgram(newDashboardModel(mgr, id))
	_, err := p.Run()
	return err
}
