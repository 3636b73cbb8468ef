// Package input implements controller handling for the NES.
package input

// Button represents NES controller buttons.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Convenience aliases for shorter names.
const (
	A      = ButtonA
	B      = ButtonB
	Select = ButtonSelect
	Start  = ButtonStart
	Up     = ButtonUp
	Down   = ButtonDown
	Left   = ButtonLeft
	Right  = ButtonRight
)

// Controller represents a standard NES controller: an 8-bit parallel-in,
// serial-out shift register latched by the $4016 strobe line.
type Controller struct {
	buttons uint8

	shiftRegister uint8
	strobe        bool
}

// New creates a new Controller instance.
func New() *Controller {
	return &Controller{}
}

// Snapshot captures a controller's shift-register state, for save states.
type Snapshot struct {
	Buttons       uint8
	ShiftRegister uint8
	Strobe        bool
}

// Snapshot returns the controller's current shift-register state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{Buttons: c.buttons, ShiftRegister: c.shiftRegister, Strobe: c.strobe}
}

// Restore installs a previously captured Snapshot.
func (c *Controller) Restore(s Snapshot) {
	c.buttons, c.shiftRegister, c.strobe = s.Buttons, s.ShiftRegister, s.Strobe
}

// SetButton sets the state of a single button.
func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

// SetState sets all eight button states at once from a packed byte, in the
// A,B,Select,Start,Up,Down,Left,Right bit order the Button constants use.
func (c *Controller) SetState(state uint8) {
	c.buttons = state
}

// SetButtons sets all button states at once, in A,B,Select,Start,Up,Down,Left,Right order.
func (c *Controller) SetButtons(buttons [8]bool) {
	c.buttons = 0
	if buttons[0] {
		c.buttons |= uint8(ButtonA)
	}
	if buttons[1] {
		c.buttons |= uint8(ButtonB)
	}
	if buttons[2] {
		c.buttons |= uint8(ButtonSelect)
	}
	if buttons[3] {
		c.buttons |= uint8(ButtonStart)
	}
	if buttons[4] {
		c.buttons |= uint8(ButtonUp)
	}
	if buttons[5] {
		c.buttons |= uint8(ButtonDown)
	}
	if buttons[6] {
		c.buttons |= uint8(ButtonLeft)
	}
	if buttons[7] {
		c.buttons |= uint8(ButtonRight)
	}
}

// IsPressed returns true if the button is currently pressed.
func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write handles writes to the controller strobe register ($4016 bit 0).
// While strobe is high the shift register continuously reloads from the
// live button state; the falling edge latches it for serial reading.
func (c *Controller) Write(value uint8) {
	c.strobe = (value & 1) != 0
	if c.strobe {
		c.shiftRegister = c.buttons
	}
}

// Read shifts out one bit of button state per call. Bit 0 of the result
// carries the data; reads past the 8th button return 1, matching the
// open-bus behavior of real controller shift-register hardware.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.shiftRegister = c.buttons
		return c.shiftRegister & 1
	}

	result := c.shiftRegister & 1
	c.shiftRegister = (c.shiftRegister >> 1) | 0x80
	return result
}

// Reset resets the controller to its power-up state.
func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
}

// InputState represents the state of both controller ports.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

// NewInputState creates a new input state with two controllers.
func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

// Reset resets all input devices.
func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

// SetButtons1 sets all button states for controller 1.
func (is *InputState) SetButtons1(buttons [8]bool) {
	is.Controller1.SetButtons(buttons)
}

// SetButtons2 sets all button states for controller 2.
func (is *InputState) SetButtons2(buttons [8]bool) {
	is.Controller2.SetButtons(buttons)
}

// Read reads from a controller port ($4016/$4017). The upper bits reflect
// open-bus value 0x40, as real NES hardware returns on these ports.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read() | 0x40
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write writes to a controller port. Only $4016 is wired to real hardware;
// both controllers share the single strobe line.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
