// Package tui is a terminal front end for a session, built with
// Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/present"
	"github.com/Comcast/sage/text"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// outcomeMsg carries the result of a session call.
type outcomeMsg struct {
	o   *core.Outcome
	err error
}

// Options for New.
type Options struct {
	// Style is a glamour style ("dark", "light", "notty", ...).
	// Empty means glamour's auto style.
	Style string

	// Width for word wrapping.  Defaults to 80.
	Width int
}

// Model is a tea.Model for one session.
//
// Only one session call runs at a time.  Keys that would start
// another are ignored until it finishes.
type Model struct {
	ctx       context.Context
	session   *core.Session
	resources *text.Resources
	renderer  *glamour.TermRenderer

	keys KeyMap
	help help.Model

	view     *present.View
	cursor   int
	checked  map[int]bool
	busy     bool
	quitting bool
	recs     string
}

// New makes a Model.  The first cycle runs when the program starts.
func New(ctx context.Context, s *core.Session, r *text.Resources, opts Options) (Model, error) {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	style := glamour.WithAutoStyle()
	if opts.Style != "" {
		style = glamour.WithStandardStyle(opts.Style)
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return Model{}, err
	}
	return Model{
		ctx:       ctx,
		session:   s,
		resources: r,
		renderer:  renderer,
		keys:      DefaultKeyMap,
		help:      help.New(),
		checked:   make(map[int]bool),
		busy:      true,
	}, nil
}

// Current returns the view being shown.
func (m Model) Current() *present.View {
	return m.view
}

func (m Model) advance() tea.Msg {
	o, err := m.session.Advance(m.ctx)
	return outcomeMsg{o, err}
}

func (m Model) restart() tea.Msg {
	o, err := m.session.Restart(m.ctx)
	return outcomeMsg{o, err}
}

func (m Model) submit(qid string, selected []string) tea.Cmd {
	return func() tea.Msg {
		o, err := m.session.Submit(m.ctx, qid, selected)
		if o == nil && !core.IsFatal(err) {
			o = m.session.Last()
		}
		return outcomeMsg{o, err}
	}
}

func (m Model) Init() tea.Cmd {
	return m.advance
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outcomeMsg:
		return m.settle(msg), nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		if m.busy || m.view == nil {
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Restart):
			m.busy = true
			return m, m.restart
		}

		q := m.view.Question
		if q == nil {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Up):
			if 0 < m.cursor {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(q.Options)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Toggle):
			if q.Multi() {
				m.checked[m.cursor] = !m.checked[m.cursor]
			}
		case key.Matches(msg, m.keys.Submit):
			var selected []string
			if q.Multi() {
				for i, o := range q.Options {
					if m.checked[i] {
						selected = append(selected, o.ID)
					}
				}
			} else if m.cursor < len(q.Options) {
				selected = []string{q.Options[m.cursor].ID}
			}
			m.busy = true
			return m, m.submit(q.ID, selected)
		}
	}
	return m, nil
}

// settle shows a new outcome.
func (m Model) settle(msg outcomeMsg) Model {
	m.busy = false
	v := present.Render(msg.o, msg.err, m.resources)

	same := m.view != nil && v.Question != nil && m.view.Question != nil &&
		v.Question.ID == m.view.Question.ID
	if !same {
		m.cursor = 0
		m.checked = make(map[int]bool)
	}
	m.view = v

	m.recs = ""
	if v.Kind == present.KindRecommendations {
		var b strings.Builder
		for _, item := range v.Recommendations {
			fmt.Fprintf(&b, "- %s\n", item.Text)
		}
		if out, err := m.renderer.Render(b.String()); err == nil {
			m.recs = out
		} else {
			m.recs = b.String()
		}
	}
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	v := m.view
	if v == nil {
		return frameStyle.Render("Thinking...")
	}

	var b strings.Builder
	switch v.Kind {
	case present.KindQuestion:
		b.WriteString(titleStyle.Render(v.Message))
		b.WriteString("\n")
		q := v.Question
		for i, o := range q.Options {
			cursor := "  "
			if i == m.cursor {
				cursor = cursorStyle.Render("> ")
			}
			box := ""
			if q.Multi() {
				box = "[ ] "
				if m.checked[i] {
					box = checkedStyle.Render("[x]") + " "
				}
			}
			b.WriteString(cursor + box + o.Text + "\n")
		}
	case present.KindRecommendations:
		b.WriteString(titleStyle.Render(v.Message))
		b.WriteString("\n")
		b.WriteString(m.recs)
	case present.KindFailed:
		b.WriteString(failedStyle.Render(v.Message))
		b.WriteString("\n")
	default:
		b.WriteString(titleStyle.Render(v.Message))
		b.WriteString("\n")
	}
	if v.Notice != "" {
		b.WriteString("\n" + noticeStyle.Render(v.Notice) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))
	return frameStyle.Render(b.String())
}

// Run runs the TUI until the user quits.  Returns the last outcome.
func Run(ctx context.Context, s *core.Session, r *text.Resources, opts Options, popts ...tea.ProgramOption) (*core.Outcome, error) {
	m, err := New(ctx, s, r, opts)
	if err != nil {
		return nil, err
	}
	popts = append([]tea.ProgramOption{tea.WithContext(ctx)}, popts...)
	if _, err := tea.NewProgram(m, popts...).Run(); err != nil {
		return s.Last(), err
	}
	return s.Last(), nil
}
