package midi

import "testing"

func TestNullDriverAllocation(t *testing.T) {
	d := NewNullDriver()

	var got []Channel
	for {
		ch := d.AllocChannel()
		if ch == nil {
			break
		}
		got = append(got, ch)
	}
	// 16 channels minus the reserved percussion channel.
	if len(got) != NumChannels-1 {
		t.Fatalf("allocated %d channels, want %d", len(got), NumChannels-1)
	}
	for _, ch := range got {
		if ch.Number() == PercussionChannel {
			t.Fatalf("AllocChannel handed out the percussion channel")
		}
	}

	got[0].Release()
	ch := d.AllocChannel()
	if ch == nil {
		t.Fatalf("AllocChannel returned nil after a release")
	}
	if ch.Number() != got[0].Number() {
		t.Errorf("reallocated channel %d, want %d", ch.Number(), got[0].Number())
	}
}

func TestNullDriverPercussion(t *testing.T) {
	d := NewNullDriver()

	p := d.Percussion()
	if p.Number() != PercussionChannel {
		t.Fatalf("percussion channel number = %d, want %d", p.Number(), PercussionChannel)
	}

	// The shared channel ignores Release and stays claimed.
	p.Release()
	for i := 0; i < NumChannels; i++ {
		if ch := d.AllocChannel(); ch != nil && ch.Number() == PercussionChannel {
			t.Fatalf("percussion channel became allocatable after Release")
		}
	}
}
