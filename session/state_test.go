package session

import (
	"testing"

	"pkt.systems/culturessh/schema"
)

func TestPlainRoutes(t *testing.T) {
	state := NewPlainState(Routes{})
	got, err := state.Serve("hello")
	if err != nil || got != "Shell started! Hello World!\r\n" {
		t.Fatalf("unexpected hello content %q (%v)", got, err)
	}
	got, _ = state.Serve("anyone")
	if got != "Here is the discord link: discord.gg/12345\r\n" {
		t.Fatalf("unexpected default content %q", got)
	}
	got, _ = state.Serve("")
	if got != "Here is the discord link: discord.gg/12345\r\n" {
		t.Fatalf("unexpected content for empty route %q", got)
	}

	custom := NewPlainState(Routes{InviteLink: "https://discord.gg/culture"})
	got, _ = custom.Serve("x")
	if got != "Here is the discord link: https://discord.gg/culture\r\n" {
		t.Fatalf("unexpected custom content %q", got)
	}
}

func TestPlainQuitTokens(t *testing.T) {
	state := NewPlainState(Routes{})
	for _, in := range []string{"q", "\x03", "\x04"} {
		if !state.HandleInput([]byte(in)) {
			t.Fatalf("expected %q to quit", in)
		}
	}
	for _, in := range []string{"x", "Q", "qq", "200"} {
		if state.HandleInput([]byte(in)) {
			t.Fatalf("expected %q not to quit", in)
		}
	}
}

func TestInteractiveServeDrawsAndQueuesInput(t *testing.T) {
	ch := &recordingChannel{}
	state := NewInteractiveState(ch, "", nil)
	defer state.Close()
	if state.Mode() != schema.ModeInteractive {
		t.Fatalf("expected interactive mode")
	}

	text, err := state.Serve("tui")
	if err != nil || text != "" {
		t.Fatalf("unexpected serve result %q (%v)", text, err)
	}
	waitFor(t, "initial frame", func() bool { return contains(ch.String(), "\x1b[?1049h") })

	if state.HandleInput([]byte("d")) {
		t.Fatalf("interactive input must never quit directly")
	}
	state.HandleInput([]byte("\x1b[A"))
	events, open := state.inboxQueue().Drain()
	if !open || len(events) != 1 || events[0].key.Rune != 'd' {
		t.Fatalf("expected one queued key, got %+v open=%v", events, open)
	}
}

func TestInteractiveResizeBeforeAndAfterHandoff(t *testing.T) {
	state := NewInteractiveState(&recordingChannel{}, "", nil)
	defer state.Close()

	state.Resize(100, 40)
	surface, err := state.TakeSurface()
	if err != nil {
		t.Fatalf("take surface: %v", err)
	}
	if w, h := surface.Terminal.Size(); w != 100 || h != 40 {
		t.Fatalf("expected 100x40, got %dx%d", w, h)
	}
	if _, err := state.TakeSurface(); err == nil {
		t.Fatalf("expected second take to fail")
	}

	state.Resize(120, 50)
	events, _ := state.inboxQueue().Drain()
	if len(events) != 1 || !events[0].resize || events[0].cols != 120 || events[0].rows != 50 {
		t.Fatalf("expected queued resize, got %+v", events)
	}
	if w, _ := surface.Terminal.Size(); w != 100 {
		t.Fatalf("surface must not be resized from callbacks after handoff")
	}
}

func TestStateCloseIsIdempotent(t *testing.T) {
	state := NewInteractiveState(&recordingChannel{}, "", nil)
	state.Close()
	state.Close()
	if _, open := state.inboxQueue().Drain(); open {
		t.Fatalf("expected inbox closed")
	}
	waitClosed(t, "bridge drained", state.Drained())

	plain := NewPlainState(Routes{})
	plain.Close()
	if plain.Drained() != nil {
		t.Fatalf("plain state has no bridge")
	}
}
