package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"parley/conversation"
	"parley/session"
	"parley/suggest"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Seconds int }
type ProcessingMsg struct{ On bool }
type ConversationMsg struct{ Msgs []conversation.Message }
type SpeakerMsg struct{ Role conversation.Role }
type SuggestionMsg struct{ S suggest.Suggestions }
type SuggestionClearedMsg struct{}
type BlockingErrorMsg struct{ Err error }
type NoticeMsg struct{ Text string }
type CopiedMsg struct{ OK bool }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateProcessing
)

// tuiHooks are the session entry points the key handlers reach. They run
// inside tea.Cmd goroutines so a slow host round-trip never blocks the
// render loop.
type tuiHooks struct {
	toggleRecording func()
	toggleSpeaker   func()
	acknowledge     func()
}

type tuiModel struct {
	hooks tuiHooks

	state         tuiState
	frame         int
	seconds       int
	speaker       conversation.Role
	msgs          []conversation.Message
	suggestion    *suggest.Suggestions
	blockingErr   error
	notice        string
	copied        bool
	width, height int
	deviceLine    string // microphone device name
	modeLine      string // "[flac | groq | openai]"
}

var (
	styleRec       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleProc      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleIdle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleErrBanner = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("124")).Bold(true).Padding(0, 1)
	styleNotice    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleAsker     = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	styleAnswerer  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	styleText      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styleEdited    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleSuggTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	styleSugg      = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleReason    = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	styleCopied    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func NewTUIProgram(hooks tuiHooks, deviceLine, modeLine string) *tea.Program {
	m := tuiModel{
		hooks:      hooks,
		speaker:    conversation.RoleInterviewer,
		deviceLine: deviceLine,
		modeLine:   modeLine,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.seconds = 0
		m.notice = ""

	case RecordingStopMsg:
		m.state = tuiStateIdle

	case RecordingTickMsg:
		m.seconds = msg.Seconds

	case ProcessingMsg:
		if msg.On {
			m.state = tuiStateProcessing
		} else {
			m.state = tuiStateIdle
			m.seconds = 0
		}

	case ConversationMsg:
		m.msgs = msg.Msgs

	case SpeakerMsg:
		m.speaker = msg.Role

	case SuggestionMsg:
		s := msg.S
		m.suggestion = &s
		m.copied = false

	case SuggestionClearedMsg:
		m.suggestion = nil
		m.copied = false

	case BlockingErrorMsg:
		m.blockingErr = msg.Err

	case NoticeMsg:
		m.notice = msg.Text

	case CopiedMsg:
		m.copied = msg.OK
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// A blocking error freezes everything except dismissal and quit.
	if m.blockingErr != nil {
		if key == "enter" || key == "esc" {
			m.blockingErr = nil
			ack := m.hooks.acknowledge
			return m, func() tea.Msg { ack(); return nil }
		}
		return m, nil
	}

	switch key {
	case "r", " ":
		f := m.hooks.toggleRecording
		return m, func() tea.Msg { f(); return nil }
	case "s":
		f := m.hooks.toggleSpeaker
		return m, func() tea.Msg { f(); return nil }
	case "y":
		if m.suggestion != nil {
			text := strings.Join(m.suggestion.Suggestions, "\n")
			return m, func() tea.Msg {
				return CopiedMsg{OK: clipboard.WriteAll(text) == nil}
			}
		}
	}
	return m, nil
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const sideWidth = 34

	var side []string

	switch m.state {
	case tuiStateRecording:
		side = append(side, styleRec.Render(fmt.Sprintf("● REC %ds", m.seconds)))
	case tuiStateProcessing:
		spin := spinnerFrames[m.frame%len(spinnerFrames)]
		side = append(side, styleProc.Render(spin+" TRANSCRIBING"))
	default:
		side = append(side, styleIdle.Render("○ IDLE"))
	}
	side = append(side, "")

	side = append(side, styleDim.Render("speaking: ")+roleStyle(m.speaker).Render(string(m.speaker)))
	if m.modeLine != "" {
		side = append(side, styleDim.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		side = append(side, styleDim.Render(m.deviceLine))
	}
	side = append(side, "")

	if m.notice != "" {
		side = append(side, styleNotice.Render("⚠ "+m.notice))
		side = append(side, "")
	}

	side = append(side,
		styleHelpKey.Render("r")+styleHelp.Render(" record/stop"),
		styleHelpKey.Render("s")+styleHelp.Render(" switch speaker"),
		styleHelpKey.Render("y")+styleHelp.Render(" copy suggestions"),
		styleHelpKey.Render("ctrl+c")+styleHelp.Render(" quit"),
		"",
		styleHelp.Render("parley "+version),
	)

	mainWidth := m.width - sideWidth - 1
	if mainWidth < 20 {
		mainWidth = 20
	}
	wrapWidth := mainWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var body strings.Builder

	if m.blockingErr != nil {
		body.WriteString(styleErrBanner.Render("✗ "+m.blockingErr.Error()) + "\n")
		body.WriteString(styleDim.Render("press enter to dismiss") + "\n\n")
	}

	suggLines := m.renderSuggestions(wrapWidth)
	convBudget := m.height - len(suggLines)
	if m.blockingErr != nil {
		convBudget -= 3
	}
	if convBudget < 3 {
		convBudget = 3
	}

	body.WriteString(m.renderConversation(wrapWidth, convBudget))
	for _, line := range suggLines {
		body.WriteString(line + "\n")
	}

	sidePanel := lipgloss.NewStyle().
		Width(sideWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(side, "\n"))

	mainPanel := lipgloss.NewStyle().
		Width(mainWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(body.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, mainPanel, sidePanel)
}

func roleStyle(r conversation.Role) lipgloss.Style {
	if r == conversation.RoleInterviewer {
		return styleAsker
	}
	return styleAnswerer
}

// renderConversation shows the newest messages that fit in the budget.
func (m tuiModel) renderConversation(wrapWidth, budget int) string {
	if len(m.msgs) == 0 {
		return styleDim.Render("No messages yet") + "\n"
	}

	var lines []string
	for _, msg := range m.msgs {
		label := roleStyle(msg.Role).Render(string(msg.Role))
		if msg.Edited {
			label += " " + styleEdited.Render("(edited)")
		}
		lines = append(lines, label)
		for _, l := range wrapText(msg.Text, wrapWidth) {
			lines = append(lines, styleText.Render(l))
		}
		lines = append(lines, "")
	}

	if len(lines) > budget {
		lines = lines[len(lines)-budget:]
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m tuiModel) renderSuggestions(wrapWidth int) []string {
	if m.suggestion == nil {
		return nil
	}

	title := styleSuggTitle.Render("Suggested answers")
	if m.copied {
		title += " " + styleCopied.Render("[✓ copied]")
	}
	lines := []string{"", title}
	for i, s := range m.suggestion.Suggestions {
		wrapped := wrapText(s, wrapWidth-3)
		for j, l := range wrapped {
			if j == 0 {
				lines = append(lines, styleSugg.Render(fmt.Sprintf("%d. %s", i+1, l)))
			} else {
				lines = append(lines, styleSugg.Render("   "+l))
			}
		}
	}
	if m.suggestion.Reasoning != "" {
		lines = append(lines, "")
		for _, l := range wrapText(m.suggestion.Reasoning, wrapWidth) {
			lines = append(lines, styleReason.Render(l))
		}
	}
	return lines
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// programSink adapts session events to bubbletea messages. The program
// pointer is installed after tea.NewProgram, so sends are guarded.
type programSink struct {
	mu sync.Mutex
	p  *tea.Program
}

func (s *programSink) SetProgram(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *programSink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (s *programSink) RecordingStart()       { s.send(RecordingStartMsg{}) }
func (s *programSink) RecordingStop()        { s.send(RecordingStopMsg{}) }
func (s *programSink) RecordingTick(sec int) { s.send(RecordingTickMsg{Seconds: sec}) }
func (s *programSink) Processing(on bool)    { s.send(ProcessingMsg{On: on}) }
func (s *programSink) ConversationChanged(msgs []conversation.Message) {
	s.send(ConversationMsg{Msgs: msgs})
}
func (s *programSink) SpeakerChanged(role conversation.Role) { s.send(SpeakerMsg{Role: role}) }
func (s *programSink) SuggestionReady(sg suggest.Suggestions) {
	s.send(SuggestionMsg{S: sg})
}
func (s *programSink) SuggestionCleared() { s.send(SuggestionClearedMsg{}) }
func (s *programSink) BlockingError(err error) {
	s.send(BlockingErrorMsg{Err: err})
}
func (s *programSink) Notice(msg string) { s.send(NoticeMsg{Text: msg}) }

var _ session.Sink = (*programSink)(nil)
