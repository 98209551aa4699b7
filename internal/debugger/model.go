// Package debugger implements an interactive step-debugger TUI for the OVM
// execution engine, modeled on hejops-gone/cpu/debugger.go's bubbletea
// model/update/view loop.
package debugger

import (
	"bytes"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"ovm/internal/vm"
)

type model struct {
	machine     *vm.Machine
	breakpoints map[uint64]bool
	lastErr     error
	out         bytes.Buffer
}

// New constructs a debugger model over an already-loaded machine.
func New(m *vm.Machine, breakpoints []uint64) model {
	bp := make(map[uint64]bool, len(breakpoints))
	for _, addr := range breakpoints {
		bp[addr] = true
	}
	return model{machine: m, breakpoints: bp}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ", "n":
			if m.machine.Halted() {
				return m, nil
			}
			if err := m.machine.Step(&m.out); err != nil {
				m.lastErr = err
				return m, nil
			}

		case "c":
			for !m.machine.Halted() {
				if err := m.machine.Step(&m.out); err != nil {
					m.lastErr = err
					break
				}
				if m.breakpoints[m.machine.PC()] {
					break
				}
			}
		}
	}
	return m, nil
}

func (m model) status() string {
	in, ok := m.machine.CurrentInstruction()
	next := "<end of program>"
	if ok {
		next = in.String()
	}
	status := fmt.Sprintf("pc=%d halted=%v\nnext: %s\n", m.machine.PC(), m.machine.Halted(), next)
	if m.lastErr != nil {
		status += fmt.Sprintf("error: %v\n", m.lastErr)
	}
	return status
}

func (m model) View() string {
	var dump bytes.Buffer
	m.machine.Dump(&dump)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.status(),
		"",
		dump.String(),
		"",
		m.out.String(),
		"",
		spew.Sdump(m.breakpoints),
		"",
		"n/space: step   c: continue to breakpoint   q: quit",
	)
}

// Run starts the interactive TUI over m, stopping at addresses in
// breakpoints when the user issues a continue.
func Run(m *vm.Machine, breakpoints []uint64) error {
	_, err := tea.NewProgram(New(m, breakpoints)).Run()
	return err
}
