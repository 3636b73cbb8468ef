package cartridge

import "testing"

// writeMMC1 performs the full 5-write serial shift sequence MMC1 requires to
// load a value into whichever register the given address selects.
func writeMMC1(m *Mapper001, address uint16, value uint8) {
	for i := 0; i < 5; i++ {
		m.WritePRG(address, (value>>uint(i))&1)
	}
}

func newMMC1Cart(prgBanks, chrBanks int, chrRAM bool) *Cartridge {
	cart := &Cartridge{
		prgROM:    make([]uint8, prgBanks*0x4000),
		chrROM:    make([]uint8, chrBanks*0x1000),
		mapperID:  1,
		hasCHRRAM: chrRAM,
	}
	for i := range cart.prgROM {
		cart.prgROM[i] = uint8((i / 0x4000) + 1) // bank number, 1-based
	}
	for i := range cart.chrROM {
		cart.chrROM[i] = uint8((i / 0x1000) + 1)
	}
	return cart
}

func TestMapper001_PowerOnState(t *testing.T) {
	cart := newMMC1Cart(4, 2, false)
	m := NewMapper001(cart)

	if m.control != 0x0C {
		t.Errorf("expected power-on control 0x0C, got 0x%02X", m.control)
	}
	if m.prgROMBanks != 4 {
		t.Errorf("expected 4 PRG banks, got %d", m.prgROMBanks)
	}
}

func TestMapper001_WritePRG_ResetsShiftRegisterOnHighBit(t *testing.T) {
	cart := newMMC1Cart(4, 2, false)
	m := NewMapper001(cart)

	// Partially load the shift register, then reset mid-sequence.
	m.WritePRG(0x8000, 1)
	m.WritePRG(0x8000, 0)
	m.WritePRG(0x8000, 0x80) // bit7 set: reset

	if m.shift != 0 || m.shiftCount != 0 {
		t.Errorf("expected shift register cleared after reset write, got shift=%d count=%d", m.shift, m.shiftCount)
	}
	if m.control&0x0C != 0x0C {
		t.Errorf("expected reset to force PRG mode bits 0x0C, got control=0x%02X", m.control)
	}
}

func TestMapper001_WritePRG_DispatchesToCorrectRegister(t *testing.T) {
	cart := newMMC1Cart(4, 2, false)

	cases := []struct {
		name    string
		address uint16
		check   func(m *Mapper001) uint8
	}{
		{"control", 0x8000, func(m *Mapper001) uint8 { return m.control }},
		{"chrBank0", 0xA000, func(m *Mapper001) uint8 { return m.chrBank0 }},
		{"chrBank1", 0xC000, func(m *Mapper001) uint8 { return m.chrBank1 }},
		{"prgBank", 0xE000, func(m *Mapper001) uint8 { return m.prgBank }},
	}

	for _, tc := range cases {
		m := NewMapper001(cart)
		writeMMC1(m, tc.address, 0x15)
		if got := tc.check(m); got != 0x15 {
			t.Errorf("%s: expected register loaded with 0x15, got 0x%02X", tc.name, got)
		}
	}
}

func TestMapper001_ReadPRG_32KMode(t *testing.T) {
	cart := newMMC1Cart(4, 2, false)
	m := NewMapper001(cart)
	writeMMC1(m, 0x8000, 0x00) // PRG mode 0: 32KiB switch
	writeMMC1(m, 0xE000, 1)    // low bit ignored -> selects bank pair (0,1)

	got8000 := m.ReadPRG(0x8000)
	gotC000 := m.ReadPRG(0xC000)
	if got8000 != 1 { // bank&^1 = 0 -> prgROM bank index 0 -> content 1
		t.Errorf("expected bank 0 content at 0x8000, got %d", got8000)
	}
	if gotC000 != 2 {
		t.Errorf("expected bank 1 content at 0xC000, got %d", gotC000)
	}
}

func TestMapper001_ReadPRG_FixFirstSwitchLast(t *testing.T) {
	cart := newMMC1Cart(4, 2, false)
	m := NewMapper001(cart)
	writeMMC1(m, 0x8000, 0x08) // PRG mode 2: fix first bank at 0x8000, switch 0xC000
	writeMMC1(m, 0xE000, 2)    // switch 0xC000 to bank 2

	if got := m.ReadPRG(0x8000); got != 1 {
		t.Errorf("expected first bank (content 1) fixed at 0x8000, got %d", got)
	}
	if got := m.ReadPRG(0xC000); got != 3 {
		t.Errorf("expected bank 2 (content 3) at 0xC000, got %d", got)
	}
}

func TestMapper001_ReadPRG_FixLastSwitchFirst(t *testing.T) {
	cart := newMMC1Cart(4, 2, false)
	m := NewMapper001(cart) // power-on default is this mode (0x0C)
	writeMMC1(m, 0xE000, 1) // switch 0x8000 to bank 1

	if got := m.ReadPRG(0x8000); got != 2 {
		t.Errorf("expected bank 1 (content 2) at 0x8000, got %d", got)
	}
	if got := m.ReadPRG(0xC000); got != 4 {
		t.Errorf("expected last bank (content 4) fixed at 0xC000, got %d", got)
	}
}

func TestMapper001_ReadWritePRG_SRAM(t *testing.T) {
	cart := newMMC1Cart(2, 2, false)
	m := NewMapper001(cart)

	m.WritePRG(0x6000, 0xAB)
	if got := m.ReadPRG(0x6000); got != 0xAB {
		t.Errorf("expected SRAM roundtrip, got 0x%02X", got)
	}
}

func TestMapper001_CHR_8KMode(t *testing.T) {
	cart := newMMC1Cart(2, 4, false) // 4 4KiB CHR banks = 16KiB CHR
	m := NewMapper001(cart)
	writeMMC1(m, 0x8000, 0x00) // chr mode bit (0x10) clear: 8KiB mode
	writeMMC1(m, 0xA000, 1)    // chrBank0 = 1 -> low bit ignored, pair base = 0

	if got := m.ReadCHR(0x0000); got != 1 { // bank 0 -> content 1
		t.Errorf("expected CHR bank 0 content at 0x0000, got %d", got)
	}
	if got := m.ReadCHR(0x1000); got != 2 { // paired bank 1 -> content 2
		t.Errorf("expected CHR bank 1 content at 0x1000, got %d", got)
	}
}

func TestMapper001_CHR_4KMode(t *testing.T) {
	cart := newMMC1Cart(2, 4, false)
	m := NewMapper001(cart)
	writeMMC1(m, 0x8000, 0x10) // chr mode bit set: 4KiB independent banks
	writeMMC1(m, 0xA000, 1)    // chrBank0 selects bank 1
	writeMMC1(m, 0xC000, 3)    // chrBank1 selects bank 3

	if got := m.ReadCHR(0x0000); got != 2 {
		t.Errorf("expected CHR bank 1 content at 0x0000-0x0FFF, got %d", got)
	}
	if got := m.ReadCHR(0x1000); got != 4 {
		t.Errorf("expected CHR bank 3 content at 0x1000-0x1FFF, got %d", got)
	}
}

func TestMapper001_WriteCHR_IgnoredUnlessCHRRAM(t *testing.T) {
	cart := newMMC1Cart(2, 2, false)
	m := NewMapper001(cart)

	before := m.ReadCHR(0x0000)
	m.WriteCHR(0x0000, 0xFF)
	if after := m.ReadCHR(0x0000); after != before {
		t.Errorf("expected CHR ROM write to be ignored, got 0x%02X -> 0x%02X", before, after)
	}
}

func TestMapper001_WriteCHR_CHRRAM(t *testing.T) {
	cart := newMMC1Cart(2, 2, true)
	m := NewMapper001(cart)

	m.WriteCHR(0x0010, 0x7E)
	if got := m.ReadCHR(0x0010); got != 0x7E {
		t.Errorf("expected CHR RAM write to persist, got 0x%02X", got)
	}
}

func TestMapper001_Mirror(t *testing.T) {
	cart := newMMC1Cart(2, 2, false)

	cases := []struct {
		bits     uint8
		expected MirrorMode
	}{
		{0, MirrorSingleScreen0},
		{1, MirrorSingleScreen1},
		{2, MirrorVertical},
		{3, MirrorHorizontal},
	}

	for _, tc := range cases {
		m := NewMapper001(cart)
		writeMMC1(m, 0x8000, 0x0C|tc.bits)
		if got := m.Mirror(); got != tc.expected {
			t.Errorf("control bits %d: expected mirror mode %v, got %v", tc.bits, tc.expected, got)
		}
	}
}
