package session

// KeyKind classifies a decoded key event.
type KeyKind int

const (
	// KeyRune is a literal character.
	KeyRune KeyKind = iota
	// KeyExit is the explicit exit command typed in one burst.
	KeyExit
	// KeyInterrupt is Ctrl-C or Ctrl-D.
	KeyInterrupt
)

// Modifier flags a key event.
type Modifier uint8

const (
	// ModNone marks an unmodified key.
	ModNone Modifier = 0
	// ModShift marks a shifted key.
	ModShift Modifier = 1 << iota
)

// KeyEvent is one decoded keystroke.
type KeyEvent struct {
	Kind KeyKind
	Rune rune
	Mod  Modifier
}

// ExitToken is the input sequence that ends an interactive session.
const ExitToken = "200"

const inputWindowSize = len(ExitToken)

// DecodeKey maps raw channel bytes onto a key event. Anything outside the
// table reports false and is dropped by the caller.
func DecodeKey(data []byte) (KeyEvent, bool) {
	if string(data) == ExitToken {
		return KeyEvent{Kind: KeyExit}, true
	}
	if len(data) != 1 {
		return KeyEvent{}, false
	}
	b := data[0]
	switch {
	case b == 0x03 || b == 0x04:
		return KeyEvent{Kind: KeyInterrupt}, true
	case b == 'D':
		return KeyEvent{Kind: KeyRune, Rune: 'D', Mod: ModShift}, true
	case b >= 0x20 && b < 0x7f:
		return KeyEvent{Kind: KeyRune, Rune: rune(b), Mod: ModNone}, true
	default:
		return KeyEvent{}, false
	}
}

// inputWindow keeps the last few typed characters. The oldest character is
// evicted first.
type inputWindow struct {
	runes []rune
}

func (w *inputWindow) push(r rune) {
	w.runes = append(w.runes, r)
	if len(w.runes) > inputWindowSize {
		w.runes = w.runes[len(w.runes)-inputWindowSize:]
	}
}

func (w *inputWindow) String() string {
	return string(w.runes)
}
