package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/kb-cli/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/kb-cli/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/kb-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/kb-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/kb-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driving"
)

// Rows taken by everything except the answer box: header, input box and status bar.
const chromeHeight = 1 + 3 + 1

// App is the ask screen following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports *Ports
	ctx   context.Context
	opts  driving.QueryOptions

	styles   *styles.Styles
	keymap   *keymap.KeyMap
	input    *input.QuestionInput
	status   *status.Bar
	spinner  spinner.Model
	viewport viewport.Model

	// question is the question behind the current answer or request.
	question string

	// answer is the last successful answer.
	answer *domain.Answer

	// showContext lists the retrieved chunks under the answer.
	showContext bool

	// asking is true while a question is in flight.
	asking bool

	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates the ask screen. opts apply to every question asked.
func NewApp(ports *Ports, opts driving.QueryOptions) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Label

	return &App{
		ports:    ports,
		ctx:      context.Background(),
		opts:     opts,
		styles:   s,
		keymap:   km,
		input:    input.NewQuestionInput(s),
		status:   status.NewBar(s, km),
		spinner:  sp,
		viewport: viewport.New(0, 0),
	}, nil
}

// WithContext sets the context questions are asked under.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.input.Init(),
		tea.SetWindowTitle("kb - ask your documents"),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.AnswerReceived:
		a.asking = false
		if msg.Err != nil {
			a.err = msg.Err
			a.status.SetState(status.StateError)
			a.status.SetMessage(msg.Err.Error())
			return a, nil
		}
		a.err = nil
		a.answer = msg.Answer
		if a.answer == nil {
			a.answer = &domain.Answer{Question: msg.Question}
		}
		a.input.Reset()
		a.status.SetState(status.StateAnswered)
		a.status.SetMessage("")
		a.status.SetSourceCount(len(a.answer.Sources))
		a.refresh()
		a.viewport.GotoTop()
		return a, nil

	case spinner.TickMsg:
		if !a.asking {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, a.keymap.Quit):
		return a, tea.Quit

	case keymap.Matches(keyStr, a.keymap.Ask):
		question := strings.TrimSpace(a.input.Value())
		if question == "" || a.asking {
			return a, nil
		}
		a.asking = true
		a.question = question
		a.status.SetState(status.StateThinking)
		return a, tea.Batch(a.spinner.Tick, a.ask(question))

	case keymap.Matches(keyStr, a.keymap.ToggleContext):
		a.showContext = !a.showContext
		a.refresh()
		return a, nil

	case keymap.Matches(keyStr, a.keymap.Clear):
		a.input.Reset()
		return a, nil

	case keymap.Matches(keyStr, a.keymap.ScrollUp), keymap.Matches(keyStr, a.keymap.ScrollDown):
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// ask runs the query pipeline off the update loop.
func (a *App) ask(question string) tea.Cmd {
	ctx, query, opts := a.ctx, a.ports.Query, a.opts
	return func() tea.Msg {
		answer, err := query.Ask(ctx, question, opts)
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	header := a.styles.Title.Render("kb") + "  " + a.styles.Muted.Render("ask your documents")

	box := a.styles.AnswerBox.
		Width(a.width - a.styles.AnswerBox.GetHorizontalBorderSize()).
		Height(a.viewport.Height)
	body := box.Render(a.viewport.View())
	if a.asking {
		body = box.Render(a.spinner.View() + " " + a.styles.Muted.Render(a.question))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		a.input.View(),
		a.status.View(),
	)
}

// refresh re-renders the answer into the viewport.
func (a *App) refresh() {
	a.viewport.SetContent(a.renderAnswer())
}

func (a *App) renderAnswer() string {
	if a.answer == nil {
		return a.styles.Muted.Render("Ask a question to search your ingested documents.")
	}

	wrap := a.styles.Answer.Width(a.viewport.Width)
	var b strings.Builder

	b.WriteString(a.styles.Muted.Render("Q: " + a.answer.Question))
	b.WriteString("\n\n")
	b.WriteString(wrap.Render(a.answer.Text))
	b.WriteString("\n\n")

	if len(a.answer.Sources) == 0 {
		b.WriteString(a.styles.Muted.Render("No sources."))
	} else {
		b.WriteString(a.styles.Label.Render("Sources:"))
		for _, src := range a.answer.Sources {
			b.WriteString("\n  - " + a.styles.Source.Render(src))
		}
	}

	if a.showContext {
		b.WriteString("\n\n" + a.styles.Label.Render("Context:"))
		for i, hit := range a.answer.Context {
			heading := fmt.Sprintf("[%d] %s #%d", i+1, hit.Record.Source, hit.Record.Sequence)
			b.WriteString("\n\n" + a.styles.Source.Render(heading) + " " +
				a.styles.Muted.Render(fmt.Sprintf("(%.3f)", hit.Score)))
			b.WriteString("\n" + wrap.Render(hit.Record.Text))
		}
	}

	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// SetDimensions sizes every component to the terminal.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	frameW, frameH := a.styles.AnswerBox.GetFrameSize()
	a.viewport.Width = max(20, width-frameW)
	a.viewport.Height = max(3, height-chromeHeight-frameH)
	a.input.SetWidth(width)
	a.status.SetWidth(width)
	a.refresh()
}

// Answer returns the last successful answer.
func (a *App) Answer() *domain.Answer {
	return a.answer
}

// Asking reports whether a question is in flight.
func (a *App) Asking() bool {
	return a.asking
}

// ShowContext reports whether retrieved chunks are displayed.
func (a *App) ShowContext() bool {
	return a.showContext
}

// Err returns the error of the last question, if it failed.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been sized.
func (a *App) Ready() bool {
	return a.ready
}
