// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/lunastat/pkg/luna"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var monitorRefresh time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive terminal UI for live measurements",
	Long: `Show the latest measurement, receive statistics and recent events in a
terminal UI, and change the sensor's sample rate while it runs.

Keys:
  tab        switch between the rate list and the divisor input
  enter      apply the selected rate or the typed divisor
  t          trigger one measurement (trigger mode)
  r          reset statistics
  q, ctrl+c  quit`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorRefresh, "refresh", 100*time.Millisecond, "Display refresh interval")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	stats := luna.NewStatistics(cfg.Sensor.StatsWindow)

	var p *tea.Program
	s, err := openSession(
		luna.WithStatistics(stats),
		luna.WithErrorHandler(func(err error) {
			p.Send(monitorEventMsg{message: err.Error(), isError: true})
		}),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.serveMetrics(); err != nil {
		return err
	}

	m := newMonitorModel(s.sensor, stats, s.info)
	p = tea.NewProgram(m, tea.WithAltScreen())

	// The alternate screen owns the terminal; log entries go to the event pane
	hooks := make(logrus.LevelHooks)
	hooks.Add(&monitorLogHook{p: p})
	saved := logger.ReplaceHooks(hooks)
	logger.SetOutput(io.Discard)
	defer func() {
		logger.ReplaceHooks(saved)
		logger.SetOutput(os.Stderr)
	}()

	go func() {
		err := <-s.readErr
		p.Send(connectionLostMsg{err: err})
	}()

	initial := cfg.Sensor.Rate
	go func() {
		if err := s.startProbed(initial); err != nil {
			p.Send(monitorEventMsg{message: fmt.Sprintf("Probe failed: %v", err), isError: true})
			return
		}
		p.Send(rateResultMsg{divisor: initial})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// monitorLogHook forwards log entries to the monitor's event pane
type monitorLogHook struct {
	p *tea.Program
}

func (h *monitorLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *monitorLogHook) Fire(e *logrus.Entry) error {
	h.p.Send(monitorEventMsg{message: e.Message, isError: e.Level <= logrus.WarnLevel})
	return nil
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

const (
	focusRateList = iota
	focusDivisorInput
)

// ratePreset is one entry of the rate list
type ratePreset struct {
	divisor uint16
}

func (r ratePreset) Title() string {
	if r.divisor == 0 {
		return "Trigger mode"
	}
	code, _ := luna.FrequencyCode(r.divisor)
	return fmt.Sprintf("%d Hz", code)
}

func (r ratePreset) Description() string {
	if r.divisor == 0 {
		return "measure on request"
	}
	return fmt.Sprintf("divisor %d", r.divisor)
}

func (r ratePreset) FilterValue() string { return r.Title() }

var ratePresets = []uint16{0, 500, 50, 5, 2}

type monitorModel struct {
	sensor *luna.Sensor
	stats  *luna.Statistics
	info   string

	snapshot luna.Snapshot
	counters luna.Counters

	rateList     list.Model
	divisorInput textinput.Model
	focused      int

	errorLog      []errorLogEntry
	maxLogEntries int

	connectionLost bool
	width          int
	height         int
	quitting       bool
}

// errorLogEntry is one line of the event panel
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type monitorTickMsg time.Time

type monitorEventMsg struct {
	message string
	isError bool
}

type rateResultMsg struct {
	divisor uint16
	err     error
}

type triggerResultMsg struct {
	err error
}

type connectionLostMsg struct {
	err error
}

func newMonitorModel(sensor *luna.Sensor, stats *luna.Statistics, info string) monitorModel {
	items := make([]list.Item, len(ratePresets))
	for i, d := range ratePresets {
		items[i] = ratePreset{divisor: d}
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	rateList := list.New(items, delegate, 28, 14)
	rateList.Title = "Sample Rate"
	rateList.SetShowStatusBar(false)
	rateList.SetShowHelp(false)
	rateList.SetFilteringEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "divisor 2-500"
	ti.CharLimit = 3
	ti.Width = 14

	return monitorModel{
		sensor:        sensor,
		stats:         stats,
		info:          info,
		rateList:      rateList,
		divisorInput:  ti,
		focused:       focusRateList,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

// setRateCmd applies a divisor off the UI goroutine
func (m monitorModel) setRateCmd(divisor uint16) tea.Cmd {
	sensor := m.sensor
	return func() tea.Msg {
		return rateResultMsg{divisor: divisor, err: sensor.SetSampleRate(divisor)}
	}
}

func (m monitorModel) triggerCmd() tea.Cmd {
	sensor := m.sensor
	return func() tea.Msg {
		return triggerResultMsg{err: sensor.Trigger()}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.snapshot = m.sensor.State().Snapshot()
		m.counters = m.stats.Snapshot()
		return m, monitorTickCmd()

	case monitorEventMsg:
		m.addLogEntry(msg.message, msg.isError)

	case rateResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Rate change failed: %v", msg.err), true)
		} else {
			m.addLogEntry(describeRate(m.sensor.State().Snapshot()), false)
		}

	case triggerResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Trigger failed: %v", msg.err), true)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.focused == focusRateList {
			m.focused = focusDivisorInput
			return m, m.divisorInput.Focus()
		}
		m.focused = focusRateList
		m.divisorInput.Blur()
		return m, nil

	case "enter":
		return m.handleEnter()
	}

	if m.focused == focusDivisorInput {
		var cmd tea.Cmd
		m.divisorInput, cmd = m.divisorInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "t":
		return m, m.triggerCmd()
	case "r":
		m.stats.Reset()
		m.addLogEntry("Statistics reset", false)
		return m, nil
	}

	var cmd tea.Cmd
	m.rateList, cmd = m.rateList.Update(msg)
	return m, cmd
}

func (m monitorModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focused == focusRateList {
		preset, ok := m.rateList.SelectedItem().(ratePreset)
		if !ok {
			return m, nil
		}
		return m, m.setRateCmd(preset.divisor)
	}

	divisor, err := parseDivisor(m.divisorInput.Value())
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	m.divisorInput.SetValue("")
	return m, m.setRateCmd(divisor)
}

// parseDivisor validates a typed divisor before it is sent
func parseDivisor(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid divisor %q", s)
	}
	if _, err := luna.FrequencyCode(uint16(v)); err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("LUNASTAT - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Phase: %s | Press 'q' to quit", m.info, m.snapshot.Phase)))
	s.WriteString("\n\n")

	if m.connectionLost {
		s.WriteString(errorStyle.Render("✗ Connection lost"))
		s.WriteString("\n\n")
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(m.measurementView()),
		boxStyle.Render(m.statsView()),
	)

	listBox, inputBox := boxStyle, boxStyle
	if m.focused == focusRateList {
		listBox = focusedBoxStyle
	} else {
		inputBox = focusedBoxStyle
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		listBox.Render(m.rateList.View()),
		inputBox.Render(labelStyle.Render("Divisor: ")+m.divisorInput.View()),
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(max(m.width-4, 20)).Render(m.eventView()))

	return s.String()
}

func (m monitorModel) measurementView() string {
	snap := m.snapshot
	var b strings.Builder

	b.WriteString(labelStyle.Render("Latest Measurement"))
	b.WriteString("\n")
	if snap.Frames == 0 {
		b.WriteString(warningStyle.Render("⏳ Waiting for frames..."))
		b.WriteString("\n")
	} else {
		meas := snap.Measurement
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Distance:   "),
			valueStyle.Render(fmt.Sprintf("%d cm (%.2f m)", meas.DistanceRaw, meas.DistanceMeters()))))
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Amplitude:  "),
			valueStyle.Render(fmt.Sprintf("%d", meas.SignalStrength))))
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Temperature:"),
			valueStyle.Render(fmt.Sprintf("%.1f°C", meas.TemperatureCelsius()))))
		for _, a := range luna.ValidateMeasurement(meas) {
			b.WriteString(warningStyle.Render("⚠ " + a.Message))
			b.WriteString("\n")
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("updated %s", snap.UpdatedAt.Format("15:04:05.000"))))
		b.WriteString("\n")
	}
	b.WriteString(describeRate(snap))
	return b.String()
}

func (m monitorModel) statsView() string {
	c := m.counters
	errRender := valueStyle.Render
	if c.ChecksumErrors > 0 {
		errRender = errorStyle.Render
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", c.Frames)),
		labelStyle.Render("Checksum:"), errRender(fmt.Sprintf("%d", c.ChecksumErrors)),
	))
	b.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Resync:"), valueStyle.Render(fmt.Sprintf("%d B", c.ResyncBytes)),
		labelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", c.Anomalies)),
	))
	if c.WindowSize > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Distance:"),
			valueStyle.Render(fmt.Sprintf("%.1f ± %.1f cm (last %d)", c.DistanceMean, c.DistanceStdDev, c.WindowSize)),
		))
	}
	b.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f fps", c.FrameRate)),
		labelStyle.Render("Errors:"), errRender(fmt.Sprintf("%.1f/s", c.ErrorRate)),
	))
	return b.String()
}

func (m monitorModel) eventView() string {
	logHeight := m.height - 26
	if logHeight < 5 {
		logHeight = 5
	}
	start := len(m.errorLog) - logHeight
	if start < 0 {
		start = 0
	}

	if len(m.errorLog) == 0 {
		return headerStyle.Render("  (no events yet)")
	}

	var b strings.Builder
	for _, entry := range m.errorLog[start:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			b.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}
	return b.String()
}
