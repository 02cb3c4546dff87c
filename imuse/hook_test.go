package imuse

import "testing"

func TestHookSetAndQuery(t *testing.T) {
	var h hookData

	if h.set(HookTranspose, 4, 0) != 0 {
		t.Error("set transpose hook failed")
	}
	if h.query(HookTranspose, 0) != 4 {
		t.Error("transpose hook not stored")
	}
	if h.set(HookPartVolume, 7, 3) != 0 {
		t.Error("set part hook failed")
	}
	if h.query(HookPartVolume, 3) != 7 {
		t.Error("part hook not stored")
	}
	if h.set(HookPartVolume, 7, 16) != -1 {
		t.Error("bad channel accepted")
	}
	if h.set(99, 1, 0) != -1 || h.query(99, 0) != -1 {
		t.Error("bad class accepted")
	}
}

func TestJumpHookQueue(t *testing.T) {
	var h hookData

	// Two jump hooks queue; matching consumes the first and shifts the
	// second down.
	h.set(HookJump, 3, 0)
	h.set(HookJump, 5, 0)
	if h.jump[0] != 3 || h.jump[1] != 5 {
		t.Fatalf("jump slots = %v", h.jump)
	}

	if h.matchJump(4) {
		t.Error("non-matching id fired")
	}
	if !h.matchJump(3) {
		t.Error("matching id did not fire")
	}
	if h.jump[0] != 5 || h.jump[1] != 0 {
		t.Errorf("second slot did not shift down: %v", h.jump)
	}
	if !h.matchJump(5) {
		t.Error("shifted hook did not fire")
	}
}

func TestHookIDZeroAlwaysFires(t *testing.T) {
	var h hookData
	if !h.matchJump(0) {
		t.Error("unconditional jump blocked")
	}
	if h.jump[0] != 0 {
		t.Error("unconditional match consumed a slot")
	}

	armed := byte(9)
	if !matchByte(&armed, 0) {
		t.Error("unconditional event blocked")
	}
	if armed != 9 {
		t.Error("unconditional match disarmed the hook")
	}
	if matchByte(&armed, 5) {
		t.Error("mismatched id fired")
	}
	if !matchByte(&armed, 9) || armed != 0 {
		t.Error("matching id must fire and disarm")
	}
}

func TestTransposeClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi, want int
	}{
		{0, -12, 12, 0},
		{5, -12, 12, 5},
		{13, -12, 12, 1},
		{-13, -12, 12, -1},
		{26, -12, 12, 2},
		{24, -24, 24, 24},
	}
	for _, tt := range tests {
		if got := transposeClamp(tt.val, tt.lo, tt.hi); got != tt.want {
			t.Errorf("transposeClamp(%d, %d, %d) = %d, want %d", tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}
