package replay

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	pagerHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// runPager shows content in a full-screen scrollable view with search.
func runPager(title, content string) error {
	prog := tea.NewProgram(
		&pagerModel{title: title, content: content},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// runPagerLive is runPager plus a file watcher: when path changes the
// content is re-rendered in place, so a running run can be followed.
func runPagerLive(title, path string, render func() (string, error)) error {
	content, err := render()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer watcher.Close()

	prog := tea.NewProgram(
		&pagerModel{
			title:   title,
			content: content,
			live:    true,
			render:  render,
			watcher: watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	return err
}

type refreshMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	wrapped  string
	ready    bool

	live    bool
	render  func() (string, error)
	watcher *fsnotify.Watcher

	searching    bool
	searchInput  textinput.Model
	searchQuery  string
	matches      []int
	matchIndex   int
	searchFailed bool
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.waitForChange()
	}
	return nil
}

func (m *pagerModel) waitForChange() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Debounce so partial writes settle before re-render.
					time.Sleep(100 * time.Millisecond)
					return refreshMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	if m.searching {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.findMatches()
				if len(m.matches) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.clearSearch()
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case refreshMsg:
		if m.render != nil {
			if content, err := m.render(); err == nil {
				offset := m.viewport.YOffset
				m.content = content
				m.rewrap()
				if offset < m.viewport.TotalLineCount() {
					m.viewport.YOffset = offset
				}
				if m.searchQuery != "" {
					m.findMatches()
				}
			}
		}
		cmds = append(cmds, m.waitForChange())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.searchQuery != "" {
				m.clearSearch()
			} else {
				return m, tea.Quit
			}
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f":
			if m.live {
				m.viewport.GotoBottom()
			}
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.Focus()
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			if m.searchQuery != "" {
				m.searchInput.SetValue(m.searchQuery)
			}
			return m, textinput.Blink
		case "n":
			if len(m.matches) > 0 {
				m.matchIndex = (m.matchIndex + 1) % len(m.matches)
				m.jumpToMatch(m.matchIndex)
			}
		case "N":
			if len(m.matches) > 0 {
				m.matchIndex--
				if m.matchIndex < 0 {
					m.matchIndex = len(m.matches) - 1
				}
				m.jumpToMatch(m.matchIndex)
			}
		}

	case tea.WindowSizeMsg:
		const headerHeight, footerHeight = 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.rewrap()
		if m.searchQuery != "" {
			m.findMatches()
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) rewrap() {
	m.wrapped = wrapToWidth(m.content, m.viewport.Width)
	m.viewport.SetContent(m.wrapped)
}

func (m *pagerModel) clearSearch() {
	m.searchQuery = ""
	m.matches = nil
	m.searchFailed = false
}

// findMatches searches the wrapped content, since those are the line
// numbers the viewport scrolls by.
func (m *pagerModel) findMatches() {
	m.matches = nil
	m.matchIndex = 0
	m.searchFailed = false
	if m.searchQuery == "" {
		return
	}

	query := strings.ToLower(m.searchQuery)
	for i, line := range strings.Split(m.wrapped, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.matches = append(m.matches, i)
		}
	}
	if len(m.matches) == 0 {
		m.searchFailed = true
	}
}

func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.matches) {
		return
	}
	target := m.matches[index] - m.viewport.Height/2
	if target < 0 {
		target = 0
	}
	if limit := m.viewport.TotalLineCount() - m.viewport.Height; target > limit {
		target = maxInt(0, limit)
	}
	m.viewport.YOffset = target
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	rule := strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(rule))

	percent := 100
	if span := m.viewport.TotalLineCount() - m.viewport.Height; span > 0 {
		percent = m.viewport.YOffset * 100 / span
		if percent > 100 {
			percent = 100
		}
	}
	info := fmt.Sprintf(" %d%% ", percent)

	var footer string
	switch {
	case m.searching:
		prompt := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("/")
		footer = prompt + m.searchInput.View()
	default:
		var help string
		switch {
		case m.searchFailed:
			notFound := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Pattern not found")
			help = fmt.Sprintf(" %s │ /: search ", notFound)
		case len(m.matches) > 0:
			matchInfo := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).
				Render(fmt.Sprintf("[%d/%d]", m.matchIndex+1, len(m.matches)))
			help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ", matchInfo)
		case m.live:
			liveMark := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).Render("● LIVE")
			help = fmt.Sprintf(" %s │ q: quit │ /: search │ f: follow │ g/G: top/bottom ", liveMark)
		default:
			help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
		}
		footer = pagerHelpStyle.Render(help) +
			pagerInfoStyle.Render(strings.Repeat("─",
				maxInt(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))) +
			pagerInfoStyle.Render(info)
	}

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrapToWidth wraps long lines while keeping the timeline's column prefix:
// continuation lines are indented to the content column after the last │.
func wrapToWidth(content string, width int) string {
	if width <= 0 {
		return content
	}

	var result []string
	for _, line := range strings.Split(content, "\n") {
		if lipgloss.Width(line) <= width {
			result = append(result, line)
			continue
		}

		lastPipe := strings.LastIndex(line, "│")
		if lastPipe > 0 && lastPipe < len(line)-1 {
			prefixWidth := lipgloss.Width(line[:lastPipe+1]) + 1
			contentWidth := width - prefixWidth
			if contentWidth < 20 {
				contentWidth = 20
			}

			start := lastPipe + len("│")
			for start < len(line) && line[start] == ' ' {
				start++
			}
			wrapped := strings.Split(wordwrap.String(line[start:], contentWidth), "\n")
			indent := strings.Repeat(" ", prefixWidth)

			result = append(result, line[:start]+wrapped[0])
			for _, cont := range wrapped[1:] {
				result = append(result, indent+cont)
			}
			continue
		}

		result = append(result, strings.Split(wordwrap.String(line, width), "\n")...)
	}
	return strings.Join(result, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
