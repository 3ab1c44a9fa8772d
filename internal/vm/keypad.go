package vm

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// Keypad reports which logical keys are held down.
type Keypad interface {
	IsPressed(key Key) bool
}

// KeypadFunc adapts a function to Keypad.
type KeypadFunc func(key Key) bool

func (f KeypadFunc) IsPressed(key Key) bool {
	return f(key)
}

type KeyState [KeyCount]bool

func (ks *KeyState) IsPressed(key Key) bool {
	return int(key) < KeyCount && ks[key]
}

func (ks *KeyState) Press(key Key) {
	if int(key) < KeyCount {
		ks[key] = true
	}
}

func (ks *KeyState) Release(key Key) {
	if int(key) < KeyCount {
		ks[key] = false
	}
}

// keyWait is the FX0A latch: while active the VM keeps re-executing FX0A
// until a key is down, then stores it in V[target].
type keyWait struct {
	active bool
	target uint8
}

func (w *keyWait) enter(target uint8) {
	w.active = true
	w.target = target
}

func (w *keyWait) release() {
	w.active = false
	w.target = 0
}

// firstPressed scans keys 0 through F and returns the lowest one held down.
func firstPressed(keys Keypad) (Key, bool) {
	for key := Key0; key <= KeyF; key++ {
		if keys.IsPressed(key) {
			return key, true
		}
	}
	return 0, false
}
