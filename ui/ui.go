// Package ui provides the interactive sound browser.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/soundshelf/internal/audio"
	"github.com/dgnsrekt/soundshelf/internal/fetch"
	"github.com/dgnsrekt/soundshelf/internal/library"
	"github.com/dgnsrekt/soundshelf/internal/playback"
	"github.com/dgnsrekt/soundshelf/internal/queue"
	"github.com/dgnsrekt/soundshelf/internal/widget"
)

// Library is the part of the library service the browser uses.
type Library interface {
	Search(ctx context.Context, sess *library.Session, query string, tags []string) ([]library.Sound, error)
	Library(ctx context.Context, sess *library.Session) ([]library.Entry, error)
	Toggle(ctx context.Context, sess *library.Session, snd library.Sound) (bool, error)
}

// Sessions reports the signed in user.
type Sessions interface {
	Current() (*library.Session, bool)
}

// Fetcher downloads audio bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Opener turns fetched bytes into a playable handle.
type Opener interface {
	Open(data []byte, name string) (audio.Handle, error)
}

// Deps are the services the browser runs against.
type Deps struct {
	Library     Library
	Sessions    Sessions
	Fetcher     Fetcher
	Loader      Opener
	Coordinator *playback.Coordinator

	// Queue and Prefetcher are optional. Without them audio is fetched
	// directly when played.
	Queue      *queue.FetchQueue
	Prefetcher *fetch.Prefetcher
}

// view is the active listing.
type view int

const (
	searchView view = iota
	libraryView
)

func (v view) String() string {
	return [...]string{"Search", "Library"}[v]
}

type model struct {
	cfg   Config
	deps  Deps
	ctx   context.Context
	stop  context.CancelFunc
	theme theme
	st    styles

	width  int
	height int

	view    view
	input   textinput.Model
	spinner spinner.Model

	// cards for the current listing. gen changes whenever the listing is
	// replaced so late results for an old listing are dropped.
	cards   []*card
	cursor  int
	gen     int
	entries []library.Entry // unfiltered library listing
	busy    bool

	statusMessage string
	statusIsError bool
	statusID      int
	statusTimer   *time.Timer
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("Starting soundshelf", "theme", cfg.Theme, "tick", cfg.TickInterval)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(cfg, deps)
	p := tea.NewProgram(m, opts...)
	if deps.Prefetcher != nil {
		deps.Prefetcher.OnResult = func(r fetch.Result) {
			p.Send(fetchedMsg(r))
		}
	}
	return p
}

func newModel(cfg Config, deps Deps) *model {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 200 * time.Millisecond
	}
	if deps.Coordinator == nil {
		deps.Coordinator = playback.NewCoordinator()
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search sounds"
	ti.CharLimit = 200
	ti.SetValue(cfg.InitialQuery)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	t := themeFor(cfg.Theme)
	ctx, stop := context.WithCancel(context.Background())
	m := &model{
		cfg:     cfg,
		deps:    deps,
		ctx:     ctx,
		stop:    stop,
		theme:   t,
		st:      newStyles(t),
		input:   ti,
		spinner: sp,
		width:   80,
		height:  24,
	}
	if cfg.InitialQuery == "" {
		m.input.Focus()
	}
	return m
}

func (m *model) session() *library.Session {
	if m.deps.Sessions == nil {
		return nil
	}
	sess, ok := m.deps.Sessions.Current()
	if !ok {
		return nil
	}
	return sess
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tick(m.cfg.TickInterval), textinput.Blink}

	if m.deps.Prefetcher != nil {
		p := m.deps.Prefetcher
		ctx := m.ctx
		go func() {
			if err := p.Run(ctx); err != nil {
				log.Warn("Prefetcher stopped", "err", err)
			}
		}()
	}

	if q := strings.TrimSpace(m.cfg.InitialQuery); q != "" {
		m.busy = true
		m.gen++
		cmds = append(cmds, searchCmd(m.ctx, m.deps, m.session(), m.gen, q))
	}
	return tea.Batch(cmds...)
}

// quit stops playback and background work. The coordinator is left with
// no holder.
func (m *model) quit() tea.Cmd {
	m.unmountAll()
	m.stop()
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	return tea.Quit
}

func (m *model) unmountAll() {
	for _, c := range m.cards {
		c.unmount()
	}
	if m.deps.Queue != nil {
		m.deps.Queue.DropNormal()
	}
}

// setSounds replaces the listing. Every old card is unmounted first.
func (m *model) setSounds(sounds []library.Sound) {
	m.unmountAll()
	m.gen++
	m.cards = make([]*card, 0, len(sounds))
	for _, s := range sounds {
		c := newCard(s)
		c.widget = widget.New(m.deps.Coordinator, nil)
		m.cards = append(m.cards, c)
	}
	m.cursor = 0
}

func (m *model) selected() *card {
	if m.cursor < 0 || m.cursor >= len(m.cards) {
		return nil
	}
	return m.cards[m.cursor]
}

func (m *model) cardsFor(url string) []*card {
	var out []*card
	for _, c := range m.cards {
		if c.sound.AudioURL == url {
			out = append(out, c)
		}
	}
	return out
}

func (m *model) cardByID(id string) *card {
	for _, c := range m.cards {
		if c.sound.ID == id {
			return c
		}
	}
	return nil
}

func requestFor(url string) queue.Request {
	return queue.Request{URL: url, Priority: queue.PriorityHigh}
}

// prefetchAround queues the next few cards below the cursor.
func (m *model) prefetchAround() {
	if m.deps.Queue == nil {
		return
	}
	for i := m.cursor; i < len(m.cards) && i <= m.cursor+m.cfg.Lookahead; i++ {
		c := m.cards[i]
		if c.widget.HasAudio() || c.cached || c.loading || !c.sound.HasAudio() {
			continue
		}
		if err := m.deps.Queue.Enqueue(queue.Request{URL: c.sound.AudioURL, SoundID: c.sound.ID}); err != nil {
			log.Debug("Lookahead not queued", "sound", c.sound.ID, "err", err)
			return
		}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6

	case tickMsg:
		for _, c := range m.cards {
			if c.widget.Sync() {
				log.Debug("Playback ended", "sound", c.sound.ID)
			}
		}
		return m, tick(m.cfg.TickInterval)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case searchResultMsg:
		if msg.gen != m.gen || m.view != searchView {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		m.setSounds(msg.sounds)
		m.prefetchAround()
		if len(msg.sounds) == 0 {
			return m, m.showStatus("No sounds found")
		}

	case libraryLoadedMsg:
		if msg.gen != m.gen || m.view != libraryView {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		m.entries = msg.entries
		m.applyFilter()

	case fetchedMsg:
		for _, c := range m.cardsFor(msg.Request.URL) {
			if msg.Err != nil {
				if c.wantPlay {
					c.loading = false
					c.wantPlay = false
					c.err = msg.Err
				}
				continue
			}
			c.cached = true
			if c.wantPlay && !c.widget.HasAudio() {
				cmds = append(cmds, openAudioCmd(m.deps, m.gen, c.sound, msg.Data))
			}
		}

	case audioLoadedMsg:
		c := m.cardByID(msg.soundID)
		if msg.gen != m.gen || c == nil || c.widget.HasAudio() {
			if msg.handle != nil {
				_ = msg.handle.Close()
			}
			return m, nil
		}
		c.loading = false
		if msg.err != nil {
			c.wantPlay = false
			c.err = msg.err
			return m, m.showError(msg.err)
		}
		if err := c.widget.Attach(msg.handle); err != nil {
			if msg.handle != nil {
				_ = msg.handle.Close()
			}
			c.wantPlay = false
			return m, nil
		}
		if c.wantPlay {
			c.wantPlay = false
			if err := c.widget.Play(); err != nil {
				c.err = err
				return m, m.showError(err)
			}
		}

	case savedToggledMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		for _, c := range m.cards {
			if c.sound.ID == msg.soundID {
				c.sound.IsSaved = msg.saved
			}
		}
		if msg.saved {
			return m, m.showStatus("Saved to library")
		}
		if m.view == libraryView {
			m.gen++
			m.busy = true
			return m, tea.Batch(m.showStatus("Removed from library"), loadLibraryCmd(m.ctx, m.deps, m.session(), m.gen))
		}
		return m, m.showStatus("Removed from library")

	case downloadedMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		return m, m.showStatus("Downloaded to " + msg.path)

	case copiedMsg:
		if msg.err != nil {
			return m, m.showError(fmt.Errorf("unable to copy url: %w", msg.err))
		}
		return m, m.showStatus("Copied audio URL")

	case statusMessageTimeoutMsg:
		if msg.id == m.statusID {
			m.statusMessage = ""
			m.statusIsError = false
		}
		return m, nil
	}

	if m.input.Focused() {
		var cmd tea.Cmd
		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if m.view == libraryView && m.input.Value() != before {
			m.applyFilter()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit(), true
	case "tab":
		return m.switchView(), true
	}

	if m.input.Focused() {
		switch msg.String() {
		case "esc":
			m.input.Blur()
			return nil, true
		case "enter":
			m.input.Blur()
			if m.view == searchView {
				return m.runSearch(), true
			}
			return nil, true
		case "down":
			m.input.Blur()
			return nil, true
		}
		return nil, false
	}

	switch msg.String() {
	case "q":
		return m.quit(), true
	case "/":
		m.input.Focus()
		return textinput.Blink, true
	case "j", "down":
		if m.cursor < len(m.cards)-1 {
			m.cursor++
			m.prefetchAround()
		}
		return nil, true
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return nil, true
	case " ":
		return m.togglePlay(), true
	case "s":
		c := m.selected()
		if c == nil {
			return nil, true
		}
		sess := m.session()
		if sess == nil {
			return m.showError(errors.New("sign in with `soundshelf login EMAIL` to save sounds")), true
		}
		return toggleSavedCmd(m.ctx, m.deps, sess, c.sound), true
	case "d":
		c := m.selected()
		if c == nil {
			return nil, true
		}
		if !c.sound.HasAudio() {
			return m.showError(widget.ErrNoAudio), true
		}
		return tea.Batch(m.showStatus("Downloading…"), downloadCmd(m.ctx, m.deps, m.cfg.DownloadDir, c.sound)), true
	case "y":
		c := m.selected()
		if c == nil || !c.sound.HasAudio() {
			return nil, true
		}
		return copyURLCmd(c.sound.AudioURL), true
	case "t":
		m.theme = m.theme.toggled()
		m.st = newStyles(m.theme)
		return nil, true
	}
	return nil, false
}

func (m *model) switchView() tea.Cmd {
	m.input.SetValue("")
	m.entries = nil
	m.setSounds(nil)
	m.busy = false

	if m.view == searchView {
		m.view = libraryView
		m.input.Prompt = "filter: "
		m.input.Placeholder = "filter your library"
		sess := m.session()
		if sess == nil {
			return nil
		}
		m.busy = true
		return loadLibraryCmd(m.ctx, m.deps, sess, m.gen)
	}

	m.view = searchView
	m.input.Prompt = "/ "
	m.input.Placeholder = "search sounds"
	m.input.Focus()
	return textinput.Blink
}

func (m *model) runSearch() tea.Cmd {
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		return nil
	}
	m.busy = true
	m.gen++
	return searchCmd(m.ctx, m.deps, m.session(), m.gen, q)
}

// applyFilter rebuilds the library cards from the loaded entries.
func (m *model) applyFilter() {
	entries := library.FilterEntries(m.entries, m.input.Value())
	sounds := make([]library.Sound, len(entries))
	for i, e := range entries {
		sounds[i] = e.Sound
	}
	m.setSounds(sounds)
	m.prefetchAround()
}

func (m *model) togglePlay() tea.Cmd {
	c := m.selected()
	if c == nil {
		return nil
	}
	c.err = nil

	if c.widget.HasAudio() || !c.sound.HasAudio() {
		if err := c.widget.Toggle(); err != nil {
			c.err = err
			return m.showError(err)
		}
		return nil
	}
	if c.loading {
		c.wantPlay = !c.wantPlay
		return nil
	}

	c.loading = true
	c.wantPlay = true
	if m.deps.Queue != nil && m.deps.Prefetcher != nil {
		if err := m.deps.Queue.Enqueue(queue.Request{
			URL:      c.sound.AudioURL,
			SoundID:  c.sound.ID,
			Priority: queue.PriorityHigh,
		}); err == nil {
			return m.spinner.Tick
		}
	}
	return tea.Batch(m.spinner.Tick, fetchCmd(m.ctx, m.deps, c.sound.AudioURL))
}

func (m *model) showStatus(s string) tea.Cmd {
	return m.setStatus(s, false)
}

func (m *model) showError(err error) tea.Cmd {
	log.Debug("Showing error", "err", err)
	return m.setStatus(library.Describe(err), true)
}

func (m *model) setStatus(s string, isError bool) tea.Cmd {
	m.statusMessage = s
	m.statusIsError = isError
	m.statusID++
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusID, m.statusTimer)
}

func (m *model) View() string {
	var b strings.Builder

	header := m.st.title.Render("soundshelf")
	for _, v := range []view{searchView, libraryView} {
		if v == m.view {
			header += m.st.activeTab.Render(v.String())
		} else {
			header += m.st.tab.Render(v.String())
		}
	}
	if sess := m.session(); sess != nil {
		header += m.st.help.Render(sess.Email)
	}
	b.WriteString(header + "\n\n")
	b.WriteString(" " + m.input.View() + "\n\n")

	b.WriteString(m.listView())

	status := ""
	switch {
	case m.statusMessage != "" && m.statusIsError:
		status = m.st.err.Render(m.statusMessage)
	case m.statusMessage != "":
		status = m.st.status.Render(m.statusMessage)
	case m.busy:
		status = m.st.help.Render(m.spinner.View() + " Loading…")
	}
	b.WriteString("\n" + status + "\n")
	b.WriteString(m.helpView())
	return b.String()
}

const cardHeight = 4

func (m *model) listView() string {
	if len(m.cards) == 0 {
		switch {
		case m.busy:
			return ""
		case m.view == libraryView && m.session() == nil:
			return m.st.help.Render("Sign in with `soundshelf login EMAIL` to see your library.") + "\n"
		case m.view == libraryView:
			return m.st.help.Render("Your library is empty. Save sounds with s.") + "\n"
		default:
			return m.st.help.Render("Type a query and press enter.") + "\n"
		}
	}

	avail := m.height - 8
	perPage := avail / cardHeight
	if perPage < 1 {
		perPage = 1
	}
	start := 0
	if m.cursor >= perPage {
		start = m.cursor - perPage + 1
	}
	end := start + perPage
	if end > len(m.cards) {
		end = len(m.cards)
	}

	spin := m.spinner.View()
	parts := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		parts = append(parts, m.cards[i].view(m.st, m.width, i == m.cursor, spin))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m *model) helpView() string {
	if m.input.Focused() {
		return m.st.help.Render("enter: search • esc: leave input • tab: switch view")
	}
	return m.st.help.Render("space: play/pause • s: save • d: download • y: copy url • t: theme • /: search • tab: view • q: quit")
}
