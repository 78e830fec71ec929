// SPDX-License-Identifier: MIT

// Package tui is the interactive device browser behind `list --interactive`.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"specverb/internal/audio"
	"specverb/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

// SampleRates are the rates offered on the configuration screen.
var SampleRates = []float64{44100, 48000, 88200, 96000}

var keys = struct {
	quit, up, down, enter, back, input, output key.Binding
}{
	quit:   key.NewBinding(key.WithKeys("q", "ctrl+c")),
	up:     key.NewBinding(key.WithKeys("up", "k")),
	down:   key.NewBinding(key.WithKeys("down", "j")),
	enter:  key.NewBinding(key.WithKeys("enter")),
	back:   key.NewBinding(key.WithKeys("esc")),
	input:  key.NewBinding(key.WithKeys("i")),
	output: key.NewBinding(key.WithKeys("o")),
}

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

// Selection is what the user confirmed in the browser.
type Selection struct {
	InputDevice  int
	OutputDevice int
	SampleRate   float64
}

// Apply copies the selection into an audio config.
func (s Selection) Apply(cfg *config.AudioConfig) {
	cfg.InputDevice = s.InputDevice
	cfg.OutputDevice = s.OutputDevice
	cfg.SampleRate = s.SampleRate
}

// DeviceListModel represents the Bubble Tea model for choosing the input
// and output devices and the sample rate.
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	inputID   int
	outputID  int
	confirmed bool

	// Configuration options
	sampleRateIndex int
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

// NewDeviceListModel creates a model that loads devices with fetch. The
// devices marked as input and output start at the defaults.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
		inputID:      config.MinDeviceID,
		outputID:     config.MinDeviceID,
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	return m.fetchDevices
}

// fetchDevices gets the available audio devices
func (m DeviceListModel) fetchDevices() tea.Msg {
	devices, err := m.fetch()
	if err != nil {
		return errMsg{err}
	}
	return devicesMsg{devices}
}

// Update handles input and updates the model
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()

	case devicesMsg:
		m.devices = msg.devices
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if key.Matches(msg, keys.quit) {
			return m, tea.Quit
		}
		handled := false
		switch m.activeScreen {
		case ListScreen:
			handled = m.updateList(msg)
		case ConfigScreen:
			if key.Matches(msg, keys.enter) {
				m.confirmed = true
				return m, tea.Quit
			}
			handled = m.updateConfig(msg)
		}
		if handled {
			m.refresh()
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateList handles the device list keys and reports whether the key was
// consumed. Unhandled keys scroll the viewport.
func (m *DeviceListModel) updateList(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, keys.up):
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case key.Matches(msg, keys.down):
		if m.selectedIndex < len(m.devices)-1 {
			m.selectedIndex++
		}
	case key.Matches(msg, keys.input):
		if d, ok := m.current(); ok && d.MaxInputChannels > 0 {
			m.inputID = d.ID
		}
	case key.Matches(msg, keys.output):
		if d, ok := m.current(); ok && d.MaxOutputChannels > 0 {
			m.outputID = d.ID
		}
	case key.Matches(msg, keys.enter):
		d, ok := m.current()
		if !ok {
			return false
		}
		m.activeScreen = ConfigScreen
		m.sampleRateIndex = 0
		for i, rate := range SampleRates {
			if rate == d.DefaultSampleRate {
				m.sampleRateIndex = i
				break
			}
		}
	default:
		return false
	}
	return true
}

func (m *DeviceListModel) updateConfig(msg tea.KeyMsg) bool {
	switch {
	case key.Matches(msg, keys.back):
		m.activeScreen = ListScreen
	case key.Matches(msg, keys.up):
		if m.sampleRateIndex > 0 {
			m.sampleRateIndex--
		}
	case key.Matches(msg, keys.down):
		if m.sampleRateIndex < len(SampleRates)-1 {
			m.sampleRateIndex++
		}
	default:
		return false
	}
	return true
}

func (m DeviceListModel) current() (audio.Device, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.devices) {
		return audio.Device{}, false
	}
	return m.devices[m.selectedIndex], true
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
		return
	}
	m.viewport.SetContent(m.renderDevices())
}

// Selection returns the confirmed choice; ok is false if the user quit
// without confirming.
func (m DeviceListModel) Selection() (Selection, bool) {
	return Selection{
		InputDevice:  m.inputID,
		OutputDevice: m.outputID,
		SampleRate:   SampleRates[m.sampleRateIndex],
	}, m.confirmed
}

// View renders the UI
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to exit.", m.err)
	}

	var title, help string

	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Audio Device List")
		help = infoStyle.Render("↑/↓: Navigate • i: Use as Input • o: Use as Output • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Stream Configuration")
		help = infoStyle.Render("↑/↓: Change Rate • Enter: Confirm • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func deviceLabel(id int, devices []audio.Device) string {
	if id == config.MinDeviceID || id >= len(devices) {
		return "system default"
	}
	return fmt.Sprintf("[%d] %s", id, devices[id].Name)
}

// renderDevices formats the device list
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marks := ""
		if device.ID == m.inputID {
			marks += " [in]"
		}
		if device.ID == m.outputID {
			marks += " [out]"
		}

		deviceInfo := fmt.Sprintf("[%d] %s (%s)%s\n", device.ID, device.Name, device.Kind(), marks)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}

	return sb.String()
}

// renderDeviceConfig formats the stream configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Input:  %s\n", deviceLabel(m.inputID, m.devices))
	fmt.Fprintf(&sb, "Output: %s\n\n", deviceLabel(m.outputID, m.devices))
	sb.WriteString("Sample Rate:\n")

	for i, rate := range SampleRates {
		marker := " "
		if i == m.sampleRateIndex {
			marker = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", marker, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}

	return sb.String()
}

// StartDeviceListUI launches the Bubble Tea TUI and returns the confirmed
// selection.
func StartDeviceListUI() (Selection, bool, error) {
	p := tea.NewProgram(
		NewDeviceListModel(audio.HostDevices),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return Selection{}, false, err
	}
	sel, ok := final.(DeviceListModel).Selection()
	return sel, ok, nil
}
