// Package tui holds the interactive screens of the bam command line tool.
package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrWizardCanceled is returned when the user leaves the wizard early.
var ErrWizardCanceled = errors.New("tui: init wizard canceled")

// InitAnswers is what the init wizard collects.
type InitAnswers struct {
	Format      string
	DirName     string
	LinkedRepos []string
}

type wizardStep int

const (
	stepFormat wizardStep = iota
	stepDirName
	stepLinked
	stepDone
)

// formatItem implements list.Item for the configuration format picker
type formatItem struct {
	id    string
	title string
	desc  string
}

func (i formatItem) Title() string       { return i.title }
func (i formatItem) Description() string { return i.desc }
func (i formatItem) FilterValue() string { return i.id }

var formatItems = []list.Item{
	formatItem{id: "go", title: "Go script (bam.go)", desc: "Hooks are Go functions evaluated by the bam interpreter"},
	formatItem{id: "yaml", title: "YAML (bam.yaml)", desc: "Hooks are shell commands run from the project directory"},
	formatItem{id: "hcl", title: "HCL (bam.hcl)", desc: "Hook blocks of shell commands; expressions can read env.<VAR>"},
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
)

// InitWizard is the bubbletea model behind `bam init`.
type InitWizard struct {
	step     wizardStep
	formats  list.Model
	dirName  textinput.Model
	linked   textinput.Model
	answers  InitAnswers
	canceled bool
}

// NewInitWizard prepares the wizard with defaults pre-filled.
func NewInitWizard(defaults InitAnswers) *InitWizard {
	formats := list.New(formatItems, list.NewDefaultDelegate(), 60, 14)
	formats.Title = "Configuration format"
	formats.SetShowStatusBar(false)
	formats.SetFilteringEnabled(false)
	for idx, item := range formatItems {
		if item.(formatItem).id == strings.ToLower(strings.TrimSpace(defaults.Format)) {
			formats.Select(idx)
		}
	}

	dirName := textinput.New()
	dirName.Placeholder = "keep the cloned directory name"
	dirName.Prompt = "dirName: "
	dirName.SetValue(defaults.DirName)

	linked := textinput.New()
	linked.Placeholder = "owner/repo, other-repo"
	linked.Prompt = "linkedRepos: "
	linked.SetValue(strings.Join(defaults.LinkedRepos, ", "))

	return &InitWizard{
		step:    stepFormat,
		formats: formats,
		dirName: dirName,
		linked:  linked,
	}
}

// Init implements tea.Model.
func (w *InitWizard) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (w *InitWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.formats.SetSize(msg.Width, max(6, msg.Height-4))
		w.dirName.Width = max(20, msg.Width-20)
		w.linked.Width = max(20, msg.Width-20)
		return w, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			w.canceled = true
			return w, tea.Quit
		case "enter":
			return w.advance()
		}
	}

	var cmd tea.Cmd
	switch w.step {
	case stepFormat:
		w.formats, cmd = w.formats.Update(msg)
	case stepDirName:
		w.dirName, cmd = w.dirName.Update(msg)
	case stepLinked:
		w.linked, cmd = w.linked.Update(msg)
	}
	return w, cmd
}

func (w *InitWizard) advance() (tea.Model, tea.Cmd) {
	switch w.step {
	case stepFormat:
		item, ok := w.formats.SelectedItem().(formatItem)
		if !ok {
			return w, nil
		}
		w.answers.Format = item.id
		w.step = stepDirName
		return w, w.dirName.Focus()
	case stepDirName:
		w.answers.DirName = strings.TrimSpace(w.dirName.Value())
		w.dirName.Blur()
		w.step = stepLinked
		return w, w.linked.Focus()
	case stepLinked:
		w.answers.LinkedRepos = SplitRepos(w.linked.Value())
		w.linked.Blur()
		w.step = stepDone
		return w, tea.Quit
	}
	return w, nil
}

// View implements tea.Model.
func (w *InitWizard) View() string {
	var b strings.Builder
	switch w.step {
	case stepFormat:
		b.WriteString(w.formats.View())
	case stepDirName:
		b.WriteString(titleStyle.Render("Project directory name") + "\n")
		b.WriteString(promptStyle.Render("Leave empty to keep the name git clones into.") + "\n\n")
		b.WriteString(w.dirName.View())
	case stepLinked:
		b.WriteString(titleStyle.Render("Linked repositories") + "\n")
		b.WriteString(promptStyle.Render("Comma separated; installed next to this project.") + "\n\n")
		b.WriteString(w.linked.View())
	case stepDone:
		b.WriteString(doneStyle.Render(fmt.Sprintf("Writing %s configuration", w.answers.Format)) + "\n")
		return b.String()
	}
	b.WriteString(hintStyle.Render("enter: next · esc: cancel"))
	return b.String()
}

// Answers returns the collected answers; ok is false unless the wizard
// reached its last step.
func (w *InitWizard) Answers() (InitAnswers, bool) {
	if w.canceled || w.step != stepDone {
		return InitAnswers{}, false
	}
	answers := w.answers
	answers.LinkedRepos = append([]string(nil), w.answers.LinkedRepos...)
	return answers, true
}

// RunInitWizard runs the wizard on the given terminal streams.
func RunInitWizard(defaults InitAnswers, in io.Reader, out io.Writer) (InitAnswers, error) {
	wizard := NewInitWizard(defaults)
	program := tea.NewProgram(wizard, tea.WithInput(in), tea.WithOutput(out))
	final, err := program.Run()
	if err != nil {
		return InitAnswers{}, fmt.Errorf("tui: run init wizard: %w", err)
	}
	answers, ok := final.(*InitWizard).Answers()
	if !ok {
		return InitAnswers{}, ErrWizardCanceled
	}
	return answers, nil
}

// SplitRepos parses a comma or whitespace separated list of repositories.
func SplitRepos(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
