// Package app provides emulator integration for the main application.
package app

import (
	"fmt"
	"time"

	"github.com/rng999/gones/internal/bus"
	"github.com/rng999/gones/internal/nes"
)

// Emulator drives an *nes.Console at a fixed 60Hz frame rate, adapting its
// StepFrame/Frame pair to the Update/Draw cadence ebiten's Game interface
// expects.
type Emulator struct {
	console *nes.Console
	config  *Config

	targetFrameTime time.Duration

	frameBuffer  []uint32
	audioSamples []float32

	actualFrameTime  time.Duration
	emulationTime    time.Duration
	cycleCount       uint64
	frameCount       uint64
	averageFrameTime time.Duration

	isRunning     bool
	lastResetTime time.Time
}

// NewEmulator creates an emulator with no console attached; SetConsole
// attaches one once a ROM has been loaded.
func NewEmulator(config *Config) *Emulator {
	e := &Emulator{
		config:          config,
		targetFrameTime: time.Duration(16666667) * time.Nanosecond, // 60 FPS
		frameBuffer:     make([]uint32, 256*240),
		audioSamples:    make([]float32, 0, 1024),
		lastResetTime:   time.Now(),
	}
	e.Reset()
	return e
}

// SetConsole attaches the console the emulator steps. Called once per
// LoadROM, since nes.Console is constructed from a loaded cartridge.
func (e *Emulator) SetConsole(console *nes.Console) {
	e.console = console
	e.Reset()
}

// Reset clears timing and buffer state.
func (e *Emulator) Reset() {
	e.actualFrameTime = 0
	e.emulationTime = 0
	e.cycleCount = 0
	e.frameCount = 0
	e.averageFrameTime = 0
	e.lastResetTime = time.Now()

	for i := range e.frameBuffer {
		e.frameBuffer[i] = 0
	}
	e.audioSamples = e.audioSamples[:0]
}

// Start starts the emulator.
func (e *Emulator) Start() {
	e.isRunning = true
}

// Stop stops the emulator.
func (e *Emulator) Stop() {
	e.isRunning = false
}

// Update steps the console for exactly one frame and refreshes the
// frame/audio buffers ebiten's Draw reads from.
func (e *Emulator) Update() error {
	if !e.isRunning || e.console == nil {
		return nil
	}

	frameStartTime := time.Now()

	if err := e.runFrame(); err != nil {
		return fmt.Errorf("frame execution error: %v", err)
	}

	e.actualFrameTime = time.Since(frameStartTime)
	e.updateAverageFrameTime()

	return nil
}

func (e *Emulator) runFrame() error {
	emulationStart := time.Now()

	e.console.StepFrame()
	e.frameCount++

	nesFrameBuffer := e.console.Bus().GetFrameBuffer()
	if len(nesFrameBuffer) == len(e.frameBuffer) {
		copy(e.frameBuffer, nesFrameBuffer)
	}

	dst := make([]float32, 4096)
	if n := e.console.TakeAudio(dst); n > 0 {
		e.audioSamples = append(e.audioSamples[:0], dst[:n]...)
	} else {
		e.audioSamples = e.audioSamples[:0]
	}

	e.emulationTime = time.Since(emulationStart)
	e.cycleCount = e.console.Bus().GetCycleCount()

	return nil
}

func (e *Emulator) updateAverageFrameTime() {
	if e.averageFrameTime == 0 {
		e.averageFrameTime = e.actualFrameTime
		return
	}
	e.averageFrameTime = time.Duration(
		float64(e.averageFrameTime)*0.95 + float64(e.actualFrameTime)*0.05,
	)
}

// GetFrameBuffer returns the current frame buffer.
func (e *Emulator) GetFrameBuffer() []uint32 {
	return e.frameBuffer
}

// GetAudioSamples returns the current audio samples.
func (e *Emulator) GetAudioSamples() []float32 {
	return e.audioSamples
}

// GetFrameCount returns the current frame count.
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

// GetCycleCount returns the current CPU cycle count.
func (e *Emulator) GetCycleCount() uint64 {
	return e.cycleCount
}

// GetEmulationTime returns the time spent in emulation for the last frame.
func (e *Emulator) GetEmulationTime() time.Duration {
	return e.emulationTime
}

// GetActualFrameTime returns the actual frame time including rendering.
func (e *Emulator) GetActualFrameTime() time.Duration {
	return e.actualFrameTime
}

// GetAverageFrameTime returns the average frame time.
func (e *Emulator) GetAverageFrameTime() time.Duration {
	return e.averageFrameTime
}

// GetTargetFrameTime returns the target frame time (60 FPS).
func (e *Emulator) GetTargetFrameTime() time.Duration {
	return e.targetFrameTime
}

// GetEmulationSpeed returns the emulation speed as a percentage of real-time.
func (e *Emulator) GetEmulationSpeed() float64 {
	if e.targetFrameTime == 0 || e.actualFrameTime == 0 {
		return 0.0
	}
	return float64(e.targetFrameTime) / float64(e.actualFrameTime) * 100.0
}

// GetCPUUsage returns the CPU usage percentage for emulation.
func (e *Emulator) GetCPUUsage() float64 {
	if e.actualFrameTime == 0 {
		return 0.0
	}
	return float64(e.emulationTime) / float64(e.actualFrameTime) * 100.0
}

// IsRunning returns whether the emulator is running.
func (e *Emulator) IsRunning() bool {
	return e.isRunning
}

// GetUptime returns the emulator uptime since last reset.
func (e *Emulator) GetUptime() time.Duration {
	return time.Since(e.lastResetTime)
}

// SetTargetFrameRate sets the target frame rate.
func (e *Emulator) SetTargetFrameRate(fps int) {
	if fps > 0 {
		e.targetFrameTime = time.Duration(1000000/fps) * time.Microsecond
	}
}

// StepFrame executes exactly one frame of emulation.
func (e *Emulator) StepFrame() error {
	if e.console == nil {
		return fmt.Errorf("console not initialized")
	}
	return e.runFrame()
}

// StepInstruction executes one CPU instruction.
func (e *Emulator) StepInstruction() error {
	if e.console == nil {
		return fmt.Errorf("console not initialized")
	}
	e.console.Bus().Step()
	e.cycleCount = e.console.Bus().GetCycleCount()
	return nil
}

// GetCPUState returns the current CPU state for debugging.
func (e *Emulator) GetCPUState() bus.CPUState {
	if e.console == nil {
		return bus.CPUState{}
	}
	return e.console.Bus().GetCPUState()
}

// GetPPUState returns the current PPU state for debugging.
func (e *Emulator) GetPPUState() bus.PPUState {
	if e.console == nil {
		return bus.PPUState{}
	}
	return e.console.Bus().GetPPUState()
}

// Cleanup releases emulator resources.
func (e *Emulator) Cleanup() error {
	e.Stop()
	e.frameBuffer = nil
	e.audioSamples = nil
	return nil
}
