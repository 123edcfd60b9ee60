package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/bingoforbots/internal/bingo"
	"github.com/lox/bingoforbots/internal/game"
	"github.com/lox/bingoforbots/internal/server"
)

// TUIModel represents the Bubble Tea model for the bingo game
type TUIModel struct {
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog      []string
	actionResult chan ActionResult
	quitSignal   chan bool
	quitting     bool
	focusedPane  int // 0 = log, 1 = input

	// Display state (event-driven, recomputed from snapshots)
	playerID string
	gameID   string
	game     *game.Game
	advisory string
	listing  []server.GameSummary

	// Dimensions
	width       int
	height      int
	initialized bool // Track if viewport has been properly sized

	// Test mode
	testMode    bool
	capturedLog []string // For test assertions
}

// ActionResult represents the result of a user action
type ActionResult struct {
	Action   string
	Args     []string
	Continue bool
	Error    error
}

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// IdentityMsg carries the player id assigned at auth
type IdentityMsg struct {
	PlayerID string
}

// JoinedMsg is emitted when the server confirms a game join
type JoinedMsg struct {
	GameID   string
	PlayerID string
}

// LeftMsg is emitted when the server confirms leaving a game
type LeftMsg struct {
	GameID string
}

// GameStateMsg carries a fresh game snapshot
type GameStateMsg struct {
	Revision int64
	Game     game.Game
}

// AdvisoryMsg is a non-fatal rule rejection, shown as a toast
type AdvisoryMsg struct {
	Code    string
	Message string
}

// ServerErrorMsg is a fatal protocol error from the server
type ServerErrorMsg struct {
	Code    string
	Message string
}

// GameListMsg carries the server's current game list
type GameListMsg struct {
	Games []server.GameSummary
}

// NewTUIModel creates a new TUI model for network mode
func NewTUIModel(logger *log.Logger) *TUIModel {
	return NewTUIModelWithOptions(logger, false)
}

// NewTUIModelWithOptions creates a new TUI model with test mode option
func NewTUIModelWithOptions(logger *log.Logger, testMode bool) *TUIModel {
	// Viewport gets properly sized when WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "call 42, bingo, ready, new bot, join <id>, list, reset, quit"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &TUIModel{
		logger:       logger.WithPrefix("tui"),
		logViewport:  vp,
		actionInput:  ti,
		gameLog:      []string{},
		actionResult: make(chan ActionResult, 1),
		quitSignal:   make(chan bool, 1),
		focusedPane:  1, // Start with input focused
		testMode:     testMode,
		capturedLog:  []string{},
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForQuit())
}

// listenForQuit returns a command that listens for quit signals
func (m *TUIModel) listenForQuit() tea.Cmd {
	return func() tea.Msg {
		<-m.quitSignal
		return QuitMsg{}
	}
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case IdentityMsg:
		m.playerID = msg.PlayerID
		m.AddLogEntry("Connected and authenticated")

	case JoinedMsg:
		m.gameID = msg.GameID
		if msg.PlayerID != "" {
			m.playerID = msg.PlayerID
		}
		m.AddLogEntry(fmt.Sprintf("Joined game %s", msg.GameID))

	case LeftMsg:
		m.AddLogEntry(fmt.Sprintf("Left game %s", msg.GameID))
		m.gameID = ""
		m.game = nil

	case GameStateMsg:
		snapshot := msg.Game
		m.noteTransitions(m.game, &snapshot)
		m.game = &snapshot
		m.gameID = snapshot.ID
		m.advisory = ""

	case AdvisoryMsg:
		m.advisory = msg.Message
		m.AddLogEntry(WarningStyle.Render(msg.Message))

	case ServerErrorMsg:
		m.AddLogEntry(ErrorStyle.Render(fmt.Sprintf("Error: %s (%s)", msg.Message, msg.Code)))

	case GameListMsg:
		m.listing = msg.Games
		if len(msg.Games) == 0 {
			m.AddLogEntry("No open games, create one with 'new'")
		}
		for _, g := range msg.Games {
			m.AddLogEntry(fmt.Sprintf("  %s  %s  %d/%d  %s", g.GameID, g.Status, g.Players, g.Max, g.Variant))
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.actionResult <- ActionResult{Action: "quit", Continue: false}
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				action := strings.TrimSpace(m.actionInput.Value())
				m.processAction(action)
				m.actionInput.SetValue("")
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd

	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// noteTransitions logs what changed between two consecutive snapshots
func (m *TUIModel) noteTransitions(old, next *game.Game) {
	if old == nil || old.ID != next.ID {
		m.AddLogEntry(fmt.Sprintf("Game %s (%s, %s)", next.ID, next.Config.Variant, next.Status))
	}

	if old != nil {
		for id, p := range next.Players {
			if _, ok := old.Players[id]; !ok {
				m.AddLogEntry(fmt.Sprintf("%s joined", p.Name))
			}
		}
		for id, p := range old.Players {
			if _, ok := next.Players[id]; !ok {
				m.AddLogEntry(fmt.Sprintf("%s left", p.Name))
			}
		}
		for i := len(old.CalledNumbers); i < len(next.CalledNumbers); i++ {
			m.AddLogEntry(fmt.Sprintf("Number called: %s",
				CalledNumberStyle.Render(fmt.Sprintf("%d", next.CalledNumbers[i]))))
		}
	}

	if old == nil || old.Status != next.Status {
		switch next.Status {
		case game.StatusSetup:
			m.AddLogEntry("Board setup: type 'ready' for a random board")
		case game.StatusPlaying:
			m.AddLogEntry(TurnStyle.Render("Game on!"))
		case game.StatusFinished:
			m.AddLogEntry(SuccessStyle.Render(m.outcomeLine(next)))
		}
	}

	if next.Status == game.StatusPlaying && next.CurrentTurn == m.playerID &&
		(old == nil || old.CurrentTurn != m.playerID || old.Status != next.Status || old.TurnSeq != next.TurnSeq) {
		m.AddLogEntry(TurnStyle.Render("Your turn, call a number"))
	}
}

func (m *TUIModel) outcomeLine(g *game.Game) string {
	switch g.Winner {
	case game.WinnerDraw:
		return "Game over: a draw, every number called"
	case m.playerID:
		return "BINGO! You win!"
	default:
		return fmt.Sprintf("Game over: %s wins", m.playerName(g, g.Winner))
	}
}

func (m *TUIModel) playerName(g *game.Game, id string) string {
	if p, ok := g.Players[id]; ok {
		if id == m.playerID {
			return "You"
		}
		return p.Name
	}
	return id
}

// processAction parses user input and forwards it to the bridge
func (m *TUIModel) processAction(input string) {
	if input == "" {
		return
	}

	fields := strings.Fields(strings.ToLower(input))
	action, args := fields[0], fields[1:]

	// A bare number is shorthand for calling it
	if _, err := fmt.Sscanf(action, "%d", new(int)); err == nil {
		args = []string{action}
		action = "call"
	}

	if action == "quit" || action == "exit" {
		m.quitting = true
		m.actionResult <- ActionResult{Action: "quit", Continue: false}
		return
	}

	select {
	case m.actionResult <- ActionResult{Action: action, Args: args, Continue: true}:
	default:
		m.AddLogEntry(WarningStyle.Render("Still working on the previous action"))
	}
}

// WaitForAction blocks until the user submits an action (for use by the bridge)
func (m *TUIModel) WaitForAction() (string, []string, bool, error) {
	result := <-m.actionResult
	return result.Action, result.Args, result.Continue, result.Error
}

// InjectAction feeds an action programmatically, test mode only
func (m *TUIModel) InjectAction(action string, args []string) error {
	if !m.testMode {
		return fmt.Errorf("action injection requires test mode")
	}
	m.actionResult <- ActionResult{Action: action, Args: args, Continue: true}
	return nil
}

// AddLogEntry appends an entry to the game log
func (m *TUIModel) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
	}
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	m.logViewport.GotoBottom()
}

// IsTestMode reports whether the model captures log entries for assertions
func (m *TUIModel) IsTestMode() bool {
	return m.testMode
}

// GetCapturedLog returns captured log entries, nil outside test mode
func (m *TUIModel) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	return m.capturedLog
}

// Quit signals the model to shut down
func (m *TUIModel) Quit() {
	select {
	case m.quitSignal <- true:
	default:
	}
}

// View renders the TUI
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	// Action pane (bottom, full width)
	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight-2, 1))
	if m.focusedPane == 1 {
		actionStyle = actionStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	actionPane := actionStyle.Render(actionContent)

	topHeight := max(m.height-lipgloss.Height(actionPane)-2, 1)

	// Board pane (left)
	boardContent := m.renderBoardPane()
	boardWidth := max(lipgloss.Width(boardContent), 23)
	boardPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(boardWidth).
		Height(topHeight).
		Render(boardContent)

	// Sidebar pane (right)
	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(topHeight).
		Render(sidebarContent)

	// Log pane fills the middle
	logWidth := max(m.width-boardWidth-sidebarWidth-6, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = topHeight
	if !m.initialized && logWidth > 1 && topHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(topHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, boardPane, logPane, sidebarPane)

	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderBoardPane renders the player's 5x5 board with called numbers marked
func (m *TUIModel) renderBoardPane() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(" YOUR BOARD "))
	b.WriteString("\n\n")

	if m.game == nil {
		b.WriteString(InfoStyle.Render("No game yet.\n'new bot' starts one."))
		return b.String()
	}

	me, ok := m.game.Players[m.playerID]
	if !ok || len(me.Board) != bingo.BoardSize {
		b.WriteString(InfoStyle.Render("No board yet.\nType 'ready' to get one."))
		return b.String()
	}

	called := bingo.CalledSet(m.game.CalledNumbers)
	for row := 0; row < 5; row++ {
		for col := 0; col < 5; col++ {
			n := me.Board[row*5+col]
			cell := fmt.Sprintf("%2d", n)
			if called[n] {
				b.WriteString(MarkedCellStyle.Render(cell))
			} else {
				b.WriteString(CellStyle.Render(cell))
			}
		}
		b.WriteString("\n")
	}

	lines := bingo.CountCompletedLines(me.Board, m.game.CalledNumbers)
	need := m.game.Config.Variant.WinThreshold()
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Lines: %d/%d", lines, need))
	if lines >= need && m.game.Status == game.StatusPlaying {
		b.WriteString("\n")
		b.WriteString(SuccessStyle.Render("Type 'bingo'!"))
	}

	return b.String()
}

// renderSidebarPane creates the sidebar content
func (m *TUIModel) renderSidebarPane() string {
	var content strings.Builder

	if m.game == nil {
		content.WriteString(InfoStyle.Render("Not in a game"))
		if len(m.listing) > 0 {
			content.WriteString("\n\n")
			content.WriteString(InfoStyle.Render("Open games:"))
			content.WriteString("\n")
			for _, g := range m.listing {
				content.WriteString(fmt.Sprintf("%s %d/%d\n", g.GameID, g.Players, g.Max))
			}
		}
		return content.String()
	}

	g := m.game
	content.WriteString(WarningStyle.Render(fmt.Sprintf("Game %s", g.ID)))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("%s, %s\n\n", g.Config.Variant, g.Status))

	content.WriteString(InfoStyle.Render("Players:"))
	content.WriteString("\n")
	for _, id := range g.TurnOrder() {
		p := g.Players[id]
		marker := "  "
		if g.Status == game.StatusPlaying && g.CurrentTurn == id {
			marker = TurnStyle.Render("> ")
		}
		name := p.Name
		if id == m.playerID {
			name += " (you)"
		}
		detail := fmt.Sprintf("bank %ds", int(p.TimeBank))
		if g.Status == game.StatusSetup {
			if p.Ready {
				detail = "ready"
			} else {
				detail = "picking a board"
			}
		}
		content.WriteString(fmt.Sprintf("%s%s  %s\n", marker, name, detail))
	}

	content.WriteString("\n")
	content.WriteString(InfoStyle.Render(fmt.Sprintf("Called (%d/%d):", len(g.CalledNumbers), g.Config.Variant.PoolSize())))
	content.WriteString("\n")
	content.WriteString(formatCalled(g.CalledNumbers, 26))

	return content.String()
}

// renderActionPane renders the input prompt and any active advisory
func (m *TUIModel) renderActionPane() string {
	var b strings.Builder
	if m.advisory != "" {
		b.WriteString(WarningStyle.Render(m.advisory))
		b.WriteString("\n")
	}
	b.WriteString(m.actionInput.View())
	return b.String()
}

// formatCalled renders the called-number log in wrapped ascending rows,
// most recent call highlighted
func formatCalled(called []int, width int) string {
	if len(called) == 0 {
		return InfoStyle.Render("none yet")
	}

	last := called[len(called)-1]
	ordered := make([]int, len(called))
	copy(ordered, called)
	sort.Ints(ordered)

	var b strings.Builder
	lineLen := 0
	for i, n := range ordered {
		cell := fmt.Sprintf("%d", n)
		if lineLen+len(cell)+1 > width && i > 0 {
			b.WriteString("\n")
			lineLen = 0
		}
		if n == last {
			b.WriteString(CalledNumberStyle.Render(cell))
		} else {
			b.WriteString(cell)
		}
		b.WriteString(" ")
		lineLen += len(cell) + 1
	}
	return b.String()
}
