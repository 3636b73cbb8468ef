// Package nes is the public embedding surface for the emulator core: a
// single Console type that owns the CPU, PPU, APU, and cartridge and
// exposes the frame/audio/state operations a host (native, WASM, or test
// harness) drives it through.
package nes

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rng999/gones/internal/bus"
	"github.com/rng999/gones/internal/cartridge"
	"github.com/rng999/gones/internal/cpu"
	"github.com/rng999/gones/internal/input"
	"github.com/rng999/gones/internal/ppu"
)

// Frame dimensions of the PPU's output image.
const (
	FrameWidth  = 256
	FrameHeight = 240
)

const cpuCyclesPerFrame = 29781 // NTSC average; see bus.Bus.Frame.

// Sentinel errors surfaced by Console's loading and state operations.
var (
	ErrBadHeader             = cartridge.ErrBadHeader
	ErrUnsupportedMapper     = cartridge.ErrUnsupportedMapper
	ErrUnsupportedNESVersion = cartridge.ErrUnsupportedVersion

	ErrSaveStateVersion    = errors.New("nes: save state version mismatch")
	ErrSaveStateCorrupt    = errors.New("nes: corrupt save state")
	ErrSaveRAMSizeMismatch = errors.New("nes: save RAM size mismatch")
)

// Console owns one NES system: CPU, PPU, APU, bus, and cartridge.
type Console struct {
	bus  *bus.Bus
	cart *cartridge.Cartridge

	frameRGBA []byte

	logLevel int
	trace    io.Writer
}

// New constructs a Console from the bytes of an iNES ROM image.
func New(romBytes []byte) (*Console, error) {
	cart, err := cartridge.LoadFromReader(bytes.NewReader(romBytes))
	if err != nil {
		return nil, err
	}

	b := bus.New()
	b.LoadCartridge(cart)

	return &Console{
		bus:       b,
		cart:      cart,
		frameRGBA: make([]byte, FrameWidth*FrameHeight*4),
	}, nil
}

// Reset performs a power-cycle-equivalent reset: CPU/PPU/APU state resets,
// PC reloads from the cartridge's reset vector.
func (c *Console) Reset() {
	c.bus.Reset()
}

// Bus returns the underlying system bus, for hosts that need lower-level
// access (debug hooks, watchpoints, a host-defined save file) beyond what
// the Core API exposes. Most hosts should not need this.
func (c *Console) Bus() *bus.Bus {
	return c.bus
}

// Cartridge returns the loaded cartridge.
func (c *Console) Cartridge() *cartridge.Cartridge {
	return c.cart
}

// SetController sets the 8-bit button state of controller port 0 or 1, in
// the A,B,Select,Start,Up,Down,Left,Right bit order.
func (c *Console) SetController(port int, state uint8) {
	switch port {
	case 0:
		c.bus.GetInputState().Controller1.SetState(state)
	case 1:
		c.bus.GetInputState().Controller2.SetState(state)
	}
}

// StepFrame runs the system for one NTSC frame (29,781 CPU cycles on
// average), optionally emitting one Nintendulator-format trace line per
// instruction if a log level was set via SetLogLevel.
func (c *Console) StepFrame() {
	target := c.bus.GetCycleCount() + cpuCyclesPerFrame
	for c.bus.GetCycleCount() < target {
		if c.logLevel > 0 && c.trace != nil {
			c.writeTraceLine()
		}
		c.bus.Step()
	}
}

// Frame returns the current PPU output as packed RGBA8888, row-major,
// 256x240. The returned slice is reused by the next Frame call.
func (c *Console) Frame() []byte {
	buf := c.bus.GetFrameBuffer()
	for i, rgb := range buf {
		off := i * 4
		c.frameRGBA[off+0] = uint8(rgb >> 16)
		c.frameRGBA[off+1] = uint8(rgb >> 8)
		c.frameRGBA[off+2] = uint8(rgb)
		c.frameRGBA[off+3] = 0xFF
	}
	return c.frameRGBA
}

// TakeAudio drains buffered audio samples into dst, returning the number of
// samples written. Samples beyond len(dst) are dropped; call again or size
// dst generously (roughly sampleRate/60 per frame) to avoid loss.
func (c *Console) TakeAudio(dst []float32) int {
	samples := c.bus.GetAudioSamples()
	n := copy(dst, samples)
	return n
}

// SetAudioSampleRate sets the APU's output sample rate.
func (c *Console) SetAudioSampleRate(rate int) {
	c.bus.SetAudioSampleRate(rate)
}

// LoadPalette installs a host-supplied 64-color NTSC palette, given as 192
// bytes of packed RGB triples (one per the PPU's 6-bit color indices).
// Passing nil or an empty slice reverts to the built-in palette.
func (c *Console) LoadPalette(rgb []byte) error {
	if len(rgb) == 0 {
		c.bus.PPU.SetPalette(nil)
		return nil
	}
	if len(rgb) != 192 {
		return fmt.Errorf("nes: palette must be 192 bytes (64 RGB triples), got %d", len(rgb))
	}
	c.bus.PPU.SetPalette(rgb)
	return nil
}

// SaveRAM returns a copy of the cartridge's battery-backed PRG-RAM, or nil
// if the cartridge has no battery.
func (c *Console) SaveRAM() []byte {
	return c.cart.SaveRAM()
}

// LoadSaveRAM restores battery-backed PRG-RAM from a previously saved blob.
func (c *Console) LoadSaveRAM(data []byte) error {
	if err := c.cart.LoadSaveRAM(data); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveRAMSizeMismatch, err)
	}
	return nil
}

// SetLogLevel sets the trace verbosity (0 disables tracing, higher values
// are reserved for future per-component detail) and the writer trace lines
// are emitted to in Nintendulator's log format.
func (c *Console) SetLogLevel(level int, w io.Writer) {
	c.logLevel = level
	c.trace = w
}

func (c *Console) writeTraceLine() {
	cpuState := c.bus.GetCPUState()
	ppuState := c.bus.GetPPUState()

	opcode := c.bus.Memory.Read(cpuState.PC)
	name, _ := c.bus.CPU.InstructionInfo(opcode)

	flags := uint8(0)
	if cpuState.Flags.N {
		flags |= 0x80
	}
	if cpuState.Flags.V {
		flags |= 0x40
	}
	flags |= 0x20 // unused bit always reads 1
	if cpuState.Flags.B {
		flags |= 0x10
	}
	if cpuState.Flags.D {
		flags |= 0x08
	}
	if cpuState.Flags.I {
		flags |= 0x04
	}
	if cpuState.Flags.Z {
		flags |= 0x02
	}
	if cpuState.Flags.C {
		flags |= 0x01
	}

	fmt.Fprintf(c.trace, "%04X  %02X %-9s A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d CYC:%d\n",
		cpuState.PC, opcode, name, cpuState.A, cpuState.X, cpuState.Y, flags, cpuState.SP,
		ppuState.Scanline, ppuState.Cycle, cpuState.Cycles)
}

const (
	saveStateMagic   = "GNES"
	saveStateVersion = uint32(1)
)

// SaveState serializes the full machine state (CPU, PPU, APU, work RAM,
// nametable RAM, and palette RAM) to a versioned binary blob. Battery save
// RAM is not included: persist it separately with SaveRAM.
func (c *Console) SaveState() []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(saveStateMagic)
	binary.Write(buf, binary.LittleEndian, saveStateVersion)

	c.writeCPUState(buf)
	c.writePPUState(buf)
	c.writeAPUState(buf)
	c.writeMemoryState(buf)
	c.writeBusState(buf)

	return buf.Bytes()
}

// LoadState restores a machine state previously produced by SaveState.
func (c *Console) LoadState(data []byte) error {
	if len(data) < len(saveStateMagic)+4 {
		return ErrSaveStateCorrupt
	}
	r := bytes.NewReader(data)

	magic := make([]byte, len(saveStateMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != saveStateMagic {
		return ErrSaveStateCorrupt
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return ErrSaveStateCorrupt
	}
	if version != saveStateVersion {
		return ErrSaveStateVersion
	}

	if err := c.readCPUState(r); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateCorrupt, err)
	}
	if err := c.readPPUState(r); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateCorrupt, err)
	}
	if err := c.readAPUState(r); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateCorrupt, err)
	}
	if err := c.readMemoryState(r); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateCorrupt, err)
	}
	if err := c.readBusState(r); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateCorrupt, err)
	}

	return nil
}

func (c *Console) writeCPUState(buf *bytes.Buffer) {
	cp := c.bus.CPU
	binary.Write(buf, binary.LittleEndian, cp.A)
	binary.Write(buf, binary.LittleEndian, cp.X)
	binary.Write(buf, binary.LittleEndian, cp.Y)
	binary.Write(buf, binary.LittleEndian, cp.SP)
	binary.Write(buf, binary.LittleEndian, cp.PC)
	binary.Write(buf, binary.LittleEndian, packFlags(cp))
	binary.Write(buf, binary.LittleEndian, cp.Cycles())
}

func (c *Console) readCPUState(r *bytes.Reader) error {
	cp := c.bus.CPU
	var flags uint8
	var cycles uint64
	fields := []any{&cp.A, &cp.X, &cp.Y, &cp.SP, &cp.PC, &flags, &cycles}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	unpackFlags(cp, flags)
	return nil
}

func packFlags(cp *cpu.CPU) uint8 {
	var f uint8
	if cp.N {
		f |= 0x80
	}
	if cp.V {
		f |= 0x40
	}
	f |= 0x20
	if cp.B {
		f |= 0x10
	}
	if cp.D {
		f |= 0x08
	}
	if cp.I {
		f |= 0x04
	}
	if cp.Z {
		f |= 0x02
	}
	if cp.C {
		f |= 0x01
	}
	return f
}

func unpackFlags(cp *cpu.CPU, f uint8) {
	cp.N = f&0x80 != 0
	cp.V = f&0x40 != 0
	cp.B = f&0x10 != 0
	cp.D = f&0x08 != 0
	cp.I = f&0x04 != 0
	cp.Z = f&0x02 != 0
	cp.C = f&0x01 != 0
}

func (c *Console) writePPUState(buf *bytes.Buffer) {
	s := c.bus.PPU.Snapshot()
	binary.Write(buf, binary.LittleEndian, s.PPUCtrl)
	binary.Write(buf, binary.LittleEndian, s.PPUMask)
	binary.Write(buf, binary.LittleEndian, s.PPUStatus)
	binary.Write(buf, binary.LittleEndian, s.OAMAddr)
	binary.Write(buf, binary.LittleEndian, s.V)
	binary.Write(buf, binary.LittleEndian, s.T)
	binary.Write(buf, binary.LittleEndian, s.X)
	binary.Write(buf, binary.LittleEndian, s.W)
	binary.Write(buf, binary.LittleEndian, int32(s.Scanline))
	binary.Write(buf, binary.LittleEndian, int32(s.Cycle))
	binary.Write(buf, binary.LittleEndian, s.FrameCount)
	binary.Write(buf, binary.LittleEndian, s.OddFrame)
	binary.Write(buf, binary.LittleEndian, s.CycleCount)
	binary.Write(buf, binary.LittleEndian, s.ReadBuffer)
	binary.Write(buf, binary.LittleEndian, s.OpenBus)
	buf.Write(s.OAM[:])
}

func (c *Console) readPPUState(r *bytes.Reader) error {
	var s ppu.Snapshot
	var scanline, cycleVal int32
	var oam [256]byte

	fields := []any{
		&s.PPUCtrl, &s.PPUMask, &s.PPUStatus, &s.OAMAddr, &s.V, &s.T, &s.X, &s.W,
		&scanline, &cycleVal, &s.FrameCount, &s.OddFrame, &s.CycleCount, &s.ReadBuffer, &s.OpenBus,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if _, err := io.ReadFull(r, oam[:]); err != nil {
		return err
	}
	s.Scanline, s.Cycle = int(scanline), int(cycleVal)
	s.OAM = oam
	c.bus.PPU.Restore(s)
	return nil
}

func (c *Console) writeAPUState(buf *bytes.Buffer) {
	data, err := c.bus.APU.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("nes: apu state marshal: %v", err))
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
}

func (c *Console) readAPUState(r *bytes.Reader) error {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return c.bus.APU.UnmarshalBinary(data)
}

func (c *Console) writeMemoryState(buf *bytes.Buffer) {
	buf.Write(c.bus.Memory.RAM())
	buf.Write(c.bus.PPU.Memory().VRAM())
	buf.Write(c.bus.PPU.Memory().PaletteRAM())
	binary.Write(buf, binary.LittleEndian, c.bus.GetInputState().Controller1.Snapshot())
	binary.Write(buf, binary.LittleEndian, c.bus.GetInputState().Controller2.Snapshot())
}

func (c *Console) readMemoryState(r *bytes.Reader) error {
	ram := make([]byte, 0x800)
	if _, err := io.ReadFull(r, ram); err != nil {
		return err
	}
	c.bus.Memory.LoadRAM(ram)

	vram := make([]byte, 0x1000)
	if _, err := io.ReadFull(r, vram); err != nil {
		return err
	}
	c.bus.PPU.Memory().LoadVRAM(vram)

	pal := make([]byte, 32)
	if _, err := io.ReadFull(r, pal); err != nil {
		return err
	}
	c.bus.PPU.Memory().LoadPaletteRAM(pal)

	var s1, s2 input.Snapshot
	if err := binary.Read(r, binary.LittleEndian, &s1); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &s2); err != nil {
		return err
	}
	c.bus.GetInputState().Controller1.Restore(s1)
	c.bus.GetInputState().Controller2.Restore(s2)
	return nil
}

// writeBusState persists the bus-level clock counters that sit above the
// CPU/PPU/APU component state: the PPU's own frame counter is restored as
// part of PPU state, so only the CPU-cycle clock needs round-tripping here.
func (c *Console) writeBusState(buf *bytes.Buffer) {
	binary.Write(buf, binary.LittleEndian, c.bus.GetCycleCount())
}

func (c *Console) readBusState(r *bytes.Reader) error {
	var cycles uint64
	if err := binary.Read(r, binary.LittleEndian, &cycles); err != nil {
		return err
	}
	c.bus.SetCycleCount(cycles)
	return nil
}
