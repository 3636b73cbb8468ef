// Package bus implements the system bus connecting the CPU, PPU, APU,
// cartridge, and controllers, and drives their cycle-accurate lockstep.
package bus

import (
	"fmt"

	"github.com/rng999/gones/internal/apu"
	"github.com/rng999/gones/internal/cartridge"
	"github.com/rng999/gones/internal/cpu"
	"github.com/rng999/gones/internal/input"
	"github.com/rng999/gones/internal/memory"
	"github.com/rng999/gones/internal/ppu"
)

// Bus connects all NES components together and owns the master clock.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cpuCycles  uint64
	ppuCycles  uint64
	frameCount uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool

	cyclesPerFrame uint64

	executionLog   []BusExecutionEvent
	loggingEnabled bool

	memoryWatchpoints map[uint16]uint8
	watchpointLogging bool
}

// New creates a new system bus with all components wired together but no
// cartridge loaded.
func New() *Bus {
	bus := &Bus{
		PPU:   ppu.New(),
		APU:   apu.New(),
		Input: input.NewInputState(),

		cyclesPerFrame: 89342,

		memoryWatchpoints: make(map[uint16]uint8),
	}

	bus.Memory = memory.New(bus.PPU, bus.APU, nil)
	bus.Memory.SetInputSystem(bus.Input)
	bus.CPU = cpu.New(bus.Memory)

	bus.PPU.SetNMICallback(bus.triggerNMI)
	bus.PPU.SetFrameCompleteCallback(bus.handleFrameComplete)
	bus.Memory.SetDMACallback(bus.TriggerOAMDMA)
	bus.APU.SetDMAReadCallback(bus.Memory.Read)

	bus.Reset()

	return bus
}

// Reset resets all components to their power-up state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cpuCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false

	b.PPU.SetFrameCount(0)

	b.executionLog = make([]BusExecutionEvent, 0)
	b.loggingEnabled = false

	b.memoryWatchpoints = make(map[uint16]uint8)
	b.watchpointLogging = false
}

// triggerNMI is called by the PPU when VBlank NMI fires.
func (b *Bus) triggerNMI() {
	b.nmiPending = true
}

// handleFrameComplete is called by the PPU when it finishes a frame.
func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// Step executes one CPU instruction (or one DMA-stalled cycle) and advances
// the PPU 3x and APU 1x per CPU cycle, preserving the fixed 3:1:1 clock
// ratio regardless of which component actually did work this call.
func (b *Bus) Step() {
	var cpuCycles uint64

	preFrameCount := b.frameCount
	prePC := b.CPU.PC
	var preOpcode uint8
	if b.Memory != nil {
		preOpcode = b.Memory.Read(prePC)
	}

	if b.dmaSuspendCycles > 0 {
		cpuCycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		if b.nmiPending {
			b.CPU.TriggerNMI()
			b.nmiPending = false
		}
		if b.APU.GetFrameIRQ() || b.APU.GetDMCIRQ() {
			b.CPU.TriggerIRQ()
		}

		cpuCycles = b.CPU.Step()
	}

	b.advancePPUAndAPU(cpuCycles)
	b.cpuCycles += cpuCycles

	// A DMC sample fetch steals CPU cycles from whatever just ran; those
	// stolen cycles still advance PPU/APU at the normal ratio.
	if stall := b.APU.TakeDMAStallCycles(); stall > 0 {
		b.advancePPUAndAPU(stall)
		b.cpuCycles += stall
	}

	if b.watchpointLogging && b.frameCount%300 == 0 {
		b.CheckMemoryWatchpoints()
	}

	if b.loggingEnabled {
		event := BusExecutionEvent{
			StepNumber:    len(b.executionLog) + 1,
			CPUCycles:     b.cpuCycles,
			PPUCycles:     b.ppuCycles,
			FrameCount:    b.frameCount,
			DMAActive:     b.dmaInProgress,
			NMIProcessed:  b.frameCount > preFrameCount,
			PCValue:       prePC,
			InstructionOp: preOpcode,
		}
		b.executionLog = append(b.executionLog, event)
	}
}

// advancePPUAndAPU steps the PPU 3x and the APU 1x per CPU cycle consumed.
func (b *Bus) advancePPUAndAPU(cpuCycles uint64) {
	for i := uint64(0); i < cpuCycles*3; i++ {
		b.PPU.Step()
		b.ppuCycles++
	}
	for i := uint64(0); i < cpuCycles; i++ {
		b.APU.Step()
	}
}

// TriggerOAMDMA initiates a 256-byte OAM DMA transfer from the given CPU
// memory page, stalling the CPU for 513 cycles (514 if starting on an odd
// CPU cycle).
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}

	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAM(uint8(i), data)
	}
}

// LoadCartridge swaps in a new cartridge, rebuilding the CPU/PPU memory maps
// around it and resetting the CPU so PC loads from the reset vector.
func (b *Bus) LoadCartridge(cart memory.CartridgeInterface) {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	mirrorMode := memory.MirrorHorizontal
	if c, ok := cart.(*cartridge.Cartridge); ok {
		switch c.MirrorMode() {
		case cartridge.MirrorHorizontal:
			mirrorMode = memory.MirrorHorizontal
		case cartridge.MirrorVertical:
			mirrorMode = memory.MirrorVertical
		case cartridge.MirrorSingleScreen0:
			mirrorMode = memory.MirrorSingleScreen0
		case cartridge.MirrorSingleScreen1:
			mirrorMode = memory.MirrorSingleScreen1
		case cartridge.MirrorFourScreen:
			mirrorMode = memory.MirrorFourScreen
		}
	}

	ppuMemory := memory.NewPPUMemory(cart, mirrorMode)
	b.PPU.SetMemory(ppuMemory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)
	b.APU.SetDMAReadCallback(b.Memory.Read)

	b.CPU.Reset()
}

// Run runs the emulator for a specified number of frames.
func (b *Bus) Run(frames int) {
	targetFrames := b.frameCount + uint64(frames)
	for b.frameCount < targetFrames {
		b.Step()
	}
}

// RunCycles runs the emulator for a specified number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	targetCycles := b.cpuCycles + cycles
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// Frame executes one complete frame's worth of CPU cycles (29,781, the NTSC
// average of 89,342 PPU cycles / 3).
func (b *Bus) Frame() {
	targetCycles := b.cpuCycles + 29781
	for b.cpuCycles < targetCycles {
		b.Step()
	}
}

// GetFrameRate returns the NTSC frame rate.
func (b *Bus) GetFrameRate() float64 {
	cpuFrequency := 1789773.0
	cpuCyclesPerFrame := cpuFrequency / 60.098803
	return cpuFrequency / cpuCyclesPerFrame
}

// GetFrameBuffer returns the current PPU frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	frameBuffer := b.PPU.GetFrameBuffer()
	return frameBuffer[:]
}

// GetAudioSamples returns the APU's buffered audio samples.
func (b *Bus) GetAudioSamples() []float32 {
	return b.APU.GetSamples()
}

// SetAudioSampleRate sets the target audio sample rate for the APU.
func (b *Bus) SetAudioSampleRate(rate int) {
	b.APU.SetSampleRate(rate)
}

// GetCycleCount returns the current CPU cycle count.
func (b *Bus) GetCycleCount() uint64 {
	return b.cpuCycles
}

// SetCycleCount restores the CPU/PPU cycle clocks after loading a save
// state; ppuCycles is kept at the fixed 3:1 ratio with the CPU clock.
func (b *Bus) SetCycleCount(cpuCycles uint64) {
	b.cpuCycles = cpuCycles
	b.ppuCycles = cpuCycles * 3
}

// GetFrameCount returns the current frame count.
func (b *Bus) GetFrameCount() uint64 {
	return b.frameCount
}

// IsDMAInProgress returns whether DMA is currently in progress.
func (b *Bus) IsDMAInProgress() bool {
	return b.dmaInProgress
}

func (b *Bus) isRenderingEnabled() bool {
	return b.PPU.IsRenderingEnabled()
}

// SetControllerButton sets the state of a single controller button.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all button states for a controller at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the input state for direct access.
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// GetExecutionLog returns the execution log recorded while logging was
// enabled; intended for tests.
func (b *Bus) GetExecutionLog() []BusExecutionEvent {
	return b.executionLog
}

// EnableExecutionLogging enables per-step execution logging.
func (b *Bus) EnableExecutionLogging() {
	b.loggingEnabled = true
}

// DisableExecutionLogging disables per-step execution logging.
func (b *Bus) DisableExecutionLogging() {
	b.loggingEnabled = false
}

// ClearExecutionLog clears the recorded execution log.
func (b *Bus) ClearExecutionLog() {
	b.executionLog = make([]BusExecutionEvent, 0)
}

// BusExecutionEvent represents a single execution step, recorded for tests.
type BusExecutionEvent struct {
	StepNumber    int
	CPUCycles     uint64
	PPUCycles     uint64
	FrameCount    uint64
	DMAActive     bool
	NMIProcessed  bool
	PCValue       uint16
	InstructionOp uint8
}

// GetCPUState returns a snapshot of CPU state, intended for tests.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.cpuCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// CPUState is a CPU state snapshot used by tests.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags is a CPU status-flag snapshot used by tests.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetPPUState returns a snapshot of PPU state, intended for tests.
func (b *Bus) GetPPUState() PPUState {
	return PPUState{
		Scanline:    b.PPU.GetScanline(),
		Cycle:       b.PPU.GetCycle(),
		FrameCount:  b.frameCount,
		VBlankFlag:  b.PPU.IsVBlank(),
		RenderingOn: b.isRenderingEnabled(),
	}
}

// PPUState is a PPU state snapshot used by tests.
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// AddMemoryWatchpoint adds a memory address to monitor for changes.
func (b *Bus) AddMemoryWatchpoint(address uint16) {
	if b.Memory != nil {
		b.memoryWatchpoints[address] = b.Memory.Read(address)
	}
}

// EnableWatchpointLogging enables or disables memory watchpoint logging.
func (b *Bus) EnableWatchpointLogging(enabled bool) {
	b.watchpointLogging = enabled
}

// CheckMemoryWatchpoints checks all watchpoints for changes and logs them.
func (b *Bus) CheckMemoryWatchpoints() {
	if !b.watchpointLogging || b.Memory == nil {
		return
	}

	for address, previousValue := range b.memoryWatchpoints {
		currentValue := b.Memory.Read(address)
		if currentValue != previousValue {
			fmt.Printf("watchpoint $%04X: $%02X -> $%02X (frame %d)\n",
				address, previousValue, currentValue, b.frameCount)
			b.memoryWatchpoints[address] = currentValue
		}
	}
}

// EnableCPUDebug enables or disables CPU trace logging and loop detection.
func (b *Bus) EnableCPUDebug(enable bool) {
	if b.CPU != nil {
		b.CPU.EnableDebugLogging(enable)
		b.CPU.EnableLoopDetection(enable)
	}
}
