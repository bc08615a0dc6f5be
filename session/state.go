package session

import (
	"errors"
	"io"

	"pkt.systems/culturessh/internal/mailbox"
	"pkt.systems/culturessh/schema"
	"pkt.systems/culturessh/term"
	"pkt.systems/culturessh/welcome"
	"pkt.systems/pslog"
)

// DefaultInviteLink is shown when no invite link is configured.
const DefaultInviteLink = "discord.gg/12345"

// Routes maps plain-mode shell routes onto the text they produce.
type Routes struct {
	InviteLink string
}

// Content returns the text written for route. The route is the ssh user
// name; an empty route selects the invite message.
func (r Routes) Content(route string) string {
	if route == "hello" {
		return "Shell started! Hello World!\r\n"
	}
	link := r.InviteLink
	if link == "" {
		link = DefaultInviteLink
	}
	return "Here is the discord link: " + link + "\r\n"
}

// Surface is the interactive render surface together with the view it paints.
// Ownership moves from State to the update loop when the shell starts.
type Surface struct {
	Terminal *term.Terminal
	Model    *welcome.Model
}

// event is an input event queued for the update loop.
type event struct {
	key    KeyEvent
	resize bool
	cols   int
	rows   int
}

// State is the per-session mode machine. Its mode is fixed at construction.
type State struct {
	mode    schema.Mode
	routes  Routes
	bridge  *Bridge
	surface *Surface
	inbox   *mailbox.Mailbox[event]
	closed  bool
}

// NewPlainState returns a plain-mode state that answers shell requests with
// static text.
func NewPlainState(routes Routes) *State {
	return &State{mode: schema.ModePlain, routes: routes}
}

// NewInteractiveState returns an interactive-mode state owning a render
// surface whose output is forwarded to out through a Bridge.
func NewInteractiveState(out io.Writer, link string, logger pslog.Logger) *State {
	bridge := NewBridge(out, logger)
	return &State{
		mode:   schema.ModeInteractive,
		bridge: bridge,
		surface: &Surface{
			Terminal: term.New(bridge, 0, 0),
			Model:    welcome.New(link),
		},
		inbox: mailbox.New[event](),
	}
}

// Mode reports the session mode.
func (s *State) Mode() schema.Mode {
	return s.mode
}

// Serve answers a shell request. In plain mode it returns the text for route.
// In interactive mode it redraws the held surface once and returns "".
func (s *State) Serve(route string) (string, error) {
	if s.mode == schema.ModePlain {
		return s.routes.Content(route), nil
	}
	if s.surface == nil {
		return "", nil
	}
	return "", s.surface.Terminal.Draw(s.surface.Model.Draw)
}

// HandleInput applies raw channel data. It reports true when a plain session
// received a quit token. Interactive input is decoded and queued for the
// update loop; undecodable input is dropped.
func (s *State) HandleInput(data []byte) bool {
	if s.mode == schema.ModePlain {
		switch string(data) {
		case "q", "\x03", "\x04":
			return true
		}
		return false
	}
	if key, ok := DecodeKey(data); ok {
		s.inbox.Push(event{key: key})
	}
	return false
}

// Resize updates the surface dimensions. Before the surface is handed off it
// is resized in place; afterwards a resize event is queued for the loop.
func (s *State) Resize(cols, rows int) {
	if s.mode == schema.ModePlain {
		return
	}
	if s.surface != nil {
		s.surface.Terminal.Resize(cols, rows)
		return
	}
	s.inbox.Push(event{resize: true, cols: cols, rows: rows})
}

var errSurfaceTaken = errors.New("render surface already handed off")

// TakeSurface moves the render surface out of the state. Later calls fail.
func (s *State) TakeSurface() (*Surface, error) {
	if s.mode == schema.ModePlain {
		return nil, errors.New("plain session has no render surface")
	}
	if s.surface == nil {
		return nil, errSurfaceTaken
	}
	surface := s.surface
	s.surface = nil
	return surface, nil
}

// inboxQueue returns the queue the update loop consumes.
func (s *State) inboxQueue() *mailbox.Mailbox[event] {
	return s.inbox
}

// Drained is closed once all output queued before Close has been written.
// It is nil for plain sessions.
func (s *State) Drained() <-chan struct{} {
	if s.bridge == nil {
		return nil
	}
	return s.bridge.Done()
}

// Close releases the input queue and the output bridge. It is idempotent.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.inbox != nil {
		s.inbox.Close()
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
}
