// Package ppu implements the Picture Processing Unit for the NES (2C02):
// the background/sprite shift-register pipeline, OAM, and the scanline
// state machine that drives VBlank/NMI timing.
package ppu

import "github.com/rng999/gones/internal/memory"

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	// CPU-visible registers
	ppuCtrl   uint8 // $2000
	ppuMask   uint8 // $2001
	ppuStatus uint8 // $2002
	oamAddr   uint8 // $2003

	// Loopy scroll registers
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address / address latch (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle for $2005/$2006

	memory *memory.PPUMemory

	scanline   int // -1 (pre-render) .. 260
	cycle      int // 0 .. 340
	frameCount uint64
	oddFrame   bool
	cycleCount uint64

	readBuffer uint8 // buffered $2007 read
	openBus    uint8 // last byte transferred over $2000-$2007

	nmiSuppressed bool

	// Background pipeline
	bgNextTileID    uint8
	bgNextTileAttr  uint8
	bgNextTileLo    uint8
	bgNextTileHi    uint8
	bgShiftPatLo    uint16
	bgShiftPatHi    uint16
	bgShiftAttrLo   uint16
	bgShiftAttrHi   uint16

	// Sprite pipeline
	oam              [256]uint8
	secondaryOAM     [8][4]uint8 // y, tile, attribute, x per slot
	spriteOAMIndex   [8]int      // original OAM index, for sprite-0 tracking
	spriteCount      int
	spritePatternLo  [8]uint8
	spritePatternHi  [8]uint8
	spriteXCounter   [8]uint8
	spriteZeroOnLine bool // sprite 0 is among this scanline's evaluated sprites
	spriteZeroDrawn  bool // sprite 0's pixel was the one drawn this cycle

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	frameBuffer [256 * 240]uint32

	palette *[64]uint32 // host-supplied palette override, nil uses nesColorPalette

	nmiCallback           func()
	frameCompleteCallback func()
}

// New creates a new PPU instance.
func New() *PPU {
	return &PPU{
		scanline: -1,
	}
}

// SetPalette installs a host-supplied 64-color NTSC palette, given as 192
// bytes of packed RGB triples. Passing nil reverts to the built-in palette.
func (p *PPU) SetPalette(rgb []byte) {
	if rgb == nil {
		p.palette = nil
		return
	}
	var table [64]uint32
	for i := 0; i < 64 && i*3+2 < len(rgb); i++ {
		r, g, b := uint32(rgb[i*3]), uint32(rgb[i*3+1]), uint32(rgb[i*3+2])
		table[i] = (r << 16) | (g << 8) | b
	}
	p.palette = &table
}

// Reset resets the PPU to its power-up state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0

	p.v, p.t = 0, 0
	p.x = 0
	p.w = false

	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.cycleCount = 0
	p.readBuffer = 0
	p.openBus = 0
	p.nmiSuppressed = false

	p.bgNextTileID, p.bgNextTileAttr, p.bgNextTileLo, p.bgNextTileHi = 0, 0, 0, 0
	p.bgShiftPatLo, p.bgShiftPatHi, p.bgShiftAttrLo, p.bgShiftAttrHi = 0, 0, 0, 0

	p.spriteCount = 0
	p.spriteZeroOnLine = false
	p.spriteZeroDrawn = false
	p.clearSpriteShifters()

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0
	}
}

// SetMemory sets the PPU memory interface.
func (p *PPU) SetMemory(m *memory.PPUMemory) {
	p.memory = m
}

// Memory returns the PPU's own address-space view (nametables, palette RAM,
// and the cartridge's CHR banks), for save states.
func (p *PPU) Memory() *memory.PPUMemory {
	return p.memory
}

// SetNMICallback sets the callback invoked when VBlank NMI fires.
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback sets the callback invoked at the end of a frame.
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// ReadRegister reads from a PPU register (CPU $2000-$2007).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002:
		status := (p.ppuStatus & 0xE0) | (p.openBus & 0x1F)

		// Reading $2002 on the cycle VBlank is set, or the cycle before,
		// races with the hardware flag/NMI set and suppresses both.
		if p.scanline == 241 && (p.cycle == 0 || p.cycle == 1) {
			p.nmiSuppressed = true
		}

		p.ppuStatus &^= 0x80 // clear VBlank
		p.w = false
		p.openBus = status
		return status
	case 0x2004:
		value := p.oam[p.oamAddr]
		p.openBus = value
		return value
	case 0x2007:
		value := p.readPPUData()
		p.openBus = value
		return value
	default:
		// $2000, $2001, $2003, $2005, $2006 are write-only: reads return
		// whatever was last driven onto the register data bus.
		return p.openBus
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007).
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.openBus = value
	switch address {
	case 0x2000:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002:
		// Read-only.
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		if p.renderingEnabled && p.scanline >= -1 && p.scanline < 240 {
			// OAMDATA writes during rendering are ignored on real hardware.
			return
		}
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// WriteOAM writes directly to OAM, used by OAM DMA.
func (p *PPU) WriteOAM(address uint8, value uint8) {
	p.oam[address] = value
}

// Step advances the PPU by exactly one PPU cycle.
func (p *PPU) Step() {
	p.cycleCount++

	if p.scanline >= -1 && p.scanline < 240 {
		p.renderScanline()
	} else if p.scanline == 241 && p.cycle == 1 {
		p.enterVBlank()
	}

	p.advanceCycle()
}

func (p *PPU) enterVBlank() {
	if !p.nmiSuppressed {
		p.ppuStatus |= 0x80
		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	}
	p.nmiSuppressed = false
}

// advanceCycle moves the cycle/scanline counters, applying the odd-frame
// cycle skip and firing the frame-complete callback on wraparound.
func (p *PPU) advanceCycle() {
	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		}
	}

	// Skip the idle cycle 0 of the first visible scanline on odd frames
	// while rendering is enabled.
	if p.scanline == 0 && p.cycle == 0 && p.oddFrame && p.renderingEnabled {
		p.cycle = 1
	}
}

// renderScanline implements the background/sprite pipeline for the
// pre-render and visible scanlines (-1..239).
func (p *PPU) renderScanline() {
	if p.scanline == -1 && p.cycle == 1 {
		p.ppuStatus &^= 0x80 | 0x40 | 0x20 // clear VBlank, sprite 0 hit, overflow
		p.clearSpriteShifters()
	}

	fetching := (p.cycle >= 2 && p.cycle <= 257) || (p.cycle >= 321 && p.cycle <= 337)
	if fetching {
		p.updateBackgroundShifters()

		switch (p.cycle - 1) % 8 {
		case 0:
			p.loadBackgroundShifters()
			addr := 0x2000 | (p.v & 0x0FFF)
			p.bgNextTileID = p.memory.Read(addr)
		case 2:
			addr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
			attr := p.memory.Read(addr)
			if (p.getCoarseY() & 0x02) != 0 {
				attr >>= 4
			}
			if (p.getCoarseX() & 0x02) != 0 {
				attr >>= 2
			}
			p.bgNextTileAttr = attr & 0x03
		case 4:
			base := uint16(0)
			if p.ppuCtrl&0x10 != 0 {
				base = 0x1000
			}
			addr := base + uint16(p.bgNextTileID)*16 + uint16(p.getFineY())
			p.bgNextTileLo = p.memory.Read(addr)
		case 6:
			base := uint16(0)
			if p.ppuCtrl&0x10 != 0 {
				base = 0x1000
			}
			addr := base + uint16(p.bgNextTileID)*16 + uint16(p.getFineY()) + 8
			p.bgNextTileHi = p.memory.Read(addr)
		case 7:
			if p.renderingEnabled {
				p.incrementX()
			}
		}
	}

	if p.cycle == 256 && p.renderingEnabled {
		p.incrementY()
	}
	if p.cycle == 257 {
		p.loadBackgroundShifters()
		if p.renderingEnabled {
			p.copyX()
		}
	}
	if p.cycle == 337 || p.cycle == 339 {
		addr := 0x2000 | (p.v & 0x0FFF)
		p.bgNextTileID = p.memory.Read(addr)
	}
	if p.scanline == -1 && p.cycle >= 280 && p.cycle <= 304 && p.renderingEnabled {
		p.copyY()
	}

	if p.cycle == 257 && p.scanline >= 0 {
		p.evaluateSprites()
	}
	if p.cycle == 340 && p.scanline >= 0 {
		p.loadSpritePatterns()
	}
	if p.scanline >= 0 && p.cycle >= 1 && p.cycle <= 256 {
		p.renderPixel(p.cycle-1, p.scanline)
	}

	p.updateSpriteShifters()
}

// renderPixel computes and writes the composited pixel at (x, y).
func (p *PPU) renderPixel(x, y int) {
	if p.memory == nil {
		return
	}

	var bgPixel, bgPalette uint8
	if p.backgroundEnabled {
		mux := uint16(0x8000) >> p.x
		lo := uint8(0)
		if p.bgShiftPatLo&mux != 0 {
			lo = 1
		}
		hi := uint8(0)
		if p.bgShiftPatHi&mux != 0 {
			hi = 1
		}
		bgPixel = (hi << 1) | lo

		paletteLo := uint8(0)
		if p.bgShiftAttrLo&mux != 0 {
			paletteLo = 1
		}
		paletteHi := uint8(0)
		if p.bgShiftAttrHi&mux != 0 {
			paletteHi = 1
		}
		bgPalette = (paletteHi << 1) | paletteLo
	}

	var fgPixel, fgPalette uint8
	fgPriority := false
	p.spriteZeroDrawn = false
	if p.spritesEnabled && (x >= 8 || p.ppuMask&0x04 != 0) {
		for i := 0; i < p.spriteCount; i++ {
			if p.spriteXCounter[i] != 0 {
				continue
			}
			lo := (p.spritePatternLo[i] >> 7) & 1
			hi := (p.spritePatternHi[i] >> 7) & 1
			pixel := (hi << 1) | lo
			if pixel == 0 {
				continue
			}
			fgPixel = pixel
			fgPalette = (p.secondaryOAM[i][2] & 0x03) + 4
			fgPriority = p.secondaryOAM[i][2]&0x20 == 0
			if p.spriteOAMIndex[i] == 0 && p.spriteZeroOnLine {
				p.spriteZeroDrawn = true
			}
			break
		}
	}

	var finalPixel, finalPalette uint8
	switch {
	case bgPixel == 0 && fgPixel == 0:
		finalPixel, finalPalette = 0, 0
	case bgPixel == 0 && fgPixel != 0:
		finalPixel, finalPalette = fgPixel, fgPalette
	case bgPixel != 0 && fgPixel == 0:
		finalPixel, finalPalette = bgPixel, bgPalette
	default:
		if fgPriority {
			finalPixel, finalPalette = fgPixel, fgPalette
		} else {
			finalPixel, finalPalette = bgPixel, bgPalette
		}
		if p.spriteZeroDrawn && p.backgroundEnabled && p.spritesEnabled && x != 255 {
			clipped := x < 8 && (p.ppuMask&0x02 == 0 || p.ppuMask&0x04 == 0)
			if !clipped {
				p.ppuStatus |= 0x40
			}
		}
	}

	var colorIndex uint8
	if finalPixel == 0 {
		colorIndex = p.memory.Read(0x3F00)
	} else {
		colorIndex = p.memory.Read(0x3F00 + uint16(finalPalette)*4 + uint16(finalPixel))
	}
	p.frameBuffer[y*256+x] = p.NESColorToRGB(colorIndex)
}

func (p *PPU) updateBackgroundShifters() {
	if !p.backgroundEnabled {
		return
	}
	p.bgShiftPatLo <<= 1
	p.bgShiftPatHi <<= 1
	p.bgShiftAttrLo <<= 1
	p.bgShiftAttrHi <<= 1
}

func (p *PPU) loadBackgroundShifters() {
	p.bgShiftPatLo = (p.bgShiftPatLo & 0xFF00) | uint16(p.bgNextTileLo)
	p.bgShiftPatHi = (p.bgShiftPatHi & 0xFF00) | uint16(p.bgNextTileHi)

	attrLo := uint16(0)
	if p.bgNextTileAttr&0x01 != 0 {
		attrLo = 0xFF
	}
	attrHi := uint16(0)
	if p.bgNextTileAttr&0x02 != 0 {
		attrHi = 0xFF
	}
	p.bgShiftAttrLo = (p.bgShiftAttrLo & 0xFF00) | attrLo
	p.bgShiftAttrHi = (p.bgShiftAttrHi & 0xFF00) | attrHi
}

func (p *PPU) spriteHeight() int {
	if p.ppuCtrl&0x20 != 0 {
		return 16
	}
	return 8
}

// evaluateSprites fills secondary OAM with the (up to) 8 sprites visible on
// the next scanline, setting the overflow flag per hardware behavior when
// more than 8 match.
func (p *PPU) evaluateSprites() {
	p.spriteCount = 0
	p.spriteZeroOnLine = false
	targetLine := p.scanline + 1
	height := p.spriteHeight()

	overflow := false
	for i := 0; i < 64; i++ {
		y := int(p.oam[i*4])
		if targetLine < y+1 || targetLine >= y+1+height {
			continue
		}
		if p.spriteCount < 8 {
			slot := p.spriteCount
			p.secondaryOAM[slot][0] = p.oam[i*4]
			p.secondaryOAM[slot][1] = p.oam[i*4+1]
			p.secondaryOAM[slot][2] = p.oam[i*4+2]
			p.secondaryOAM[slot][3] = p.oam[i*4+3]
			p.spriteOAMIndex[slot] = i
			if i == 0 {
				p.spriteZeroOnLine = true
			}
			p.spriteCount++
		} else {
			overflow = true
			break
		}
	}

	if overflow {
		p.ppuStatus |= 0x20
	}
}

func (p *PPU) clearSpriteShifters() {
	for i := 0; i < 8; i++ {
		p.spritePatternLo[i] = 0
		p.spritePatternHi[i] = 0
		p.spriteXCounter[i] = 0
		p.spriteOAMIndex[i] = -1
	}
}

// loadSpritePatterns fetches pattern bytes for each sprite found during
// evaluation and primes the per-sprite X counters.
func (p *PPU) loadSpritePatterns() {
	height := p.spriteHeight()
	for i := 0; i < p.spriteCount; i++ {
		y := p.secondaryOAM[i][0]
		tile := p.secondaryOAM[i][1]
		attr := p.secondaryOAM[i][2]
		row := uint16(p.scanline + 1 - int(y)) // row within the sprite, 0-based

		flipV := attr&0x80 != 0
		flipH := attr&0x40 != 0

		var addr uint16
		if height == 8 {
			base := uint16(0)
			if p.ppuCtrl&0x08 != 0 {
				base = 0x1000
			}
			r := row
			if flipV {
				r = 7 - row
			}
			addr = base + uint16(tile)*16 + r
		} else {
			base := uint16(tile&0x01) * 0x1000
			t := tile &^ 0x01
			r := row
			if flipV {
				r = 15 - row
			}
			if r >= 8 {
				t++
				r -= 8
			}
			addr = base + uint16(t)*16 + r
		}

		lo := p.memory.Read(addr)
		hi := p.memory.Read(addr + 8)
		if flipH {
			lo = reverseBits(lo)
			hi = reverseBits(hi)
		}

		p.spritePatternLo[i] = lo
		p.spritePatternHi[i] = hi
		p.spriteXCounter[i] = p.secondaryOAM[i][3]
	}
}

func (p *PPU) updateSpriteShifters() {
	if !p.spritesEnabled || p.cycle < 1 || p.cycle > 257 {
		return
	}
	for i := 0; i < p.spriteCount; i++ {
		if p.spriteXCounter[i] > 0 {
			p.spriteXCounter[i]--
		} else {
			p.spritePatternLo[i] <<= 1
			p.spritePatternHi[i] <<= 1
		}
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

// checkNMI fires the NMI callback immediately if PPUCTRL's NMI-enable bit
// is turned on while VBlank is already active, matching hardware's
// edge-sensitive NMI line.
func (p *PPU) checkNMI() {
	if (p.ppuCtrl&0x80 != 0) && (p.ppuStatus&0x80 != 0) && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readPPUData() uint8 {
	var data uint8
	if p.memory == nil {
		p.incrementVRAMAddr()
		return 0
	}

	if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}
	p.incrementVRAMAddr()
	return data
}

func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.incrementVRAMAddr()
}

func (p *PPU) incrementVRAMAddr() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the current frame buffer.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the current frame count.
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// SetFrameCount sets the frame count, used when synchronizing with the bus.
func (p *PPU) SetFrameCount(count uint64) {
	p.frameCount = count
}

// GetScanline returns the current scanline.
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current cycle.
func (p *PPU) GetCycle() int {
	return p.cycle
}

// IsRenderingEnabled returns true if background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool {
	return p.renderingEnabled
}

// IsVBlank returns true if currently in vertical blank.
func (p *PPU) IsVBlank() bool {
	return (p.ppuStatus & 0x80) != 0
}

// GetCycleCount returns the total PPU cycle count since reset.
func (p *PPU) GetCycleCount() uint64 {
	return p.cycleCount
}

// EnableBackgroundDebugLogging is a no-op hook kept for host tooling that
// wants to toggle verbose background tracing; this core has none to enable.
func (p *PPU) EnableBackgroundDebugLogging(enabled bool) {}

// SetBackgroundDebugVerbosity is a no-op hook, see EnableBackgroundDebugLogging.
func (p *PPU) SetBackgroundDebugVerbosity(level int) {}

// ClearFrameBuffer clears the frame buffer to a specific color.
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}

func (p *PPU) getCoarseX() int { return int(p.v & 0x001F) }
func (p *PPU) getCoarseY() int { return int((p.v >> 5) & 0x001F) }
func (p *PPU) getFineY() int   { return int((p.v >> 12) & 0x0007) }

// incrementX increments coarse X in v, wrapping into the next horizontal
// nametable at the 32-tile boundary.
func (p *PPU) incrementX() {
	if (p.v & 0x001F) == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementY increments fine Y in v, carrying into coarse Y and wrapping
// into the next vertical nametable at the 30-row boundary.
func (p *PPU) incrementY() {
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
	} else {
		p.v &^= 0x7000
		y := (p.v & 0x03E0) >> 5
		switch y {
		case 29:
			y = 0
			p.v ^= 0x0800
		case 31:
			y = 0
		default:
			y++
		}
		p.v = (p.v &^ 0x03E0) | (y << 5)
	}
}

// copyX copies the horizontal scroll bits from t into v.
func (p *PPU) copyX() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

// copyY copies the vertical scroll bits from t into v.
func (p *PPU) copyY() {
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

// NES 2C02 NTSC color palette.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a 6-bit NES palette index (0x00-0x3F) to RGB.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0x000000
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// NESColorToRGB is the PPU-method form of the package-level converter,
// honoring a host-installed palette override from SetPalette.
func (p *PPU) NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0x000000
	}
	if p.palette != nil {
		return p.palette[colorIndex] & 0x00FFFFFF
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// Snapshot captures the PPU's register and OAM state for save states. The
// background/sprite shift-register pipeline is not captured: a load resumes
// cleanly at the next scanline boundary rather than mid-pixel.
type Snapshot struct {
	PPUCtrl, PPUMask, PPUStatus, OAMAddr uint8
	V, T                                 uint16
	X                                    uint8
	W                                    bool
	Scanline, Cycle                      int
	FrameCount                           uint64
	OddFrame                             bool
	CycleCount                           uint64
	ReadBuffer, OpenBus                  uint8
	OAM                                  [256]uint8
}

// Snapshot returns the PPU's current register/OAM state.
func (p *PPU) Snapshot() Snapshot {
	return Snapshot{
		PPUCtrl:    p.ppuCtrl,
		PPUMask:    p.ppuMask,
		PPUStatus:  p.ppuStatus,
		OAMAddr:    p.oamAddr,
		V:          p.v,
		T:          p.t,
		X:          p.x,
		W:          p.w,
		Scanline:   p.scanline,
		Cycle:      p.cycle,
		FrameCount: p.frameCount,
		OddFrame:   p.oddFrame,
		CycleCount: p.cycleCount,
		ReadBuffer: p.readBuffer,
		OpenBus:    p.openBus,
		OAM:        p.oam,
	}
}

// Restore installs a previously captured Snapshot, resetting the background
// and sprite pipelines so rendering restarts cleanly at the next scanline.
func (p *PPU) Restore(s Snapshot) {
	p.ppuCtrl = s.PPUCtrl
	p.ppuMask = s.PPUMask
	p.ppuStatus = s.PPUStatus
	p.oamAddr = s.OAMAddr
	p.v, p.t, p.x, p.w = s.V, s.T, s.X, s.W
	p.scanline, p.cycle = s.Scanline, s.Cycle
	p.frameCount = s.FrameCount
	p.oddFrame = s.OddFrame
	p.cycleCount = s.CycleCount
	p.readBuffer, p.openBus = s.ReadBuffer, s.OpenBus
	p.oam = s.OAM
	p.updateRenderingFlags()
	p.clearSpriteShifters()
	p.bgShiftPatLo, p.bgShiftPatHi = 0, 0
	p.bgShiftAttrLo, p.bgShiftAttrHi = 0, 0
}
