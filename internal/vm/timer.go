package vm

type EventKind uint8

const (
	// EventBeep fires when the sound timer counts down from 1 to 0.
	EventBeep EventKind = iota + 1

	// EventUnknownOpcode reports an opcode that was skipped as a no-op.
	EventUnknownOpcode

	// EventScreenUpdate fires once per tick in which the screen was cleared or drawn to.
	EventScreenUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventBeep:
		return "beep"
	case EventUnknownOpcode:
		return "unknown-opcode"
	case EventScreenUpdate:
		return "screen-update"
	default:
		return "invalid"
	}
}

type Event struct {
	Kind EventKind

	// Address and value of the offending opcode, for EventUnknownOpcode.
	PC     uint16
	Opcode uint16
}

// Tick runs one host frame: CyclesPerTick instructions against the given key
// state, then one timer decrement. It returns the events emitted during the
// frame. A fatal error stops the VM; every later call returns the same error.
func (vm *VM) Tick(keys Keypad) ([]Event, error) {
	if vm.fault != nil {
		return nil, vm.fault
	}

	if keys == nil {
		keys = &KeyState{}
	}
	vm.keys = keys
	vm.events = nil

	for i := 0; i < vm.cyclesPerTick; i++ {
		if err := vm.cycle(); err != nil {
			vm.fault = err
			return vm.events, err
		}
	}

	if vm.drawFlag {
		vm.emit(Event{Kind: EventScreenUpdate})
		vm.drawFlag = false
	}

	vm.updateTimers()

	return vm.events, nil
}

func (vm *VM) updateTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
		if vm.soundTimer == 0 {
			vm.emit(Event{Kind: EventBeep})
		}
	}
}
