package proc

import "testing"

func TestRAMRoundtrip(t *testing.T) {
	ram := NewRAM(2 * PageSize)
	if err := ram.WriteWord(0x100, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	v, err := ram.ReadWord(0x100)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xdeadbeef {
		t.Errorf("read back %#x, want %#x", v, 0xdeadbeef)
	}
}

func TestRAMSizeRoundsUpToPage(t *testing.T) {
	ram := NewRAM(PageSize + 1)
	if ram.Size() != 2*PageSize {
		t.Errorf("size = %d, want %d", ram.Size(), 2*PageSize)
	}
}

func TestRAMOutOfRange(t *testing.T) {
	ram := NewRAM(PageSize)
	if _, err := ram.ReadWord(PageSize); err == nil {
		t.Error("read past end succeeded")
	}
	if _, err := ram.ReadWord(PageSize - 2); err == nil {
		t.Error("straddling read succeeded")
	}
	if err := ram.WriteWord(PageSize, 1); err == nil {
		t.Error("write past end succeeded")
	}
}
