package bitlog

import "testing"

func TestStatusIsComplete(t *testing.T) {
	cases := map[Status]bool{
		StatusNull:     false,
		StatusDeferred: false,
		StatusDone:     true,
		StatusDonePlus: true,
	}
	for status, want := range cases {
		if got := status.IsComplete(); got != want {
			t.Errorf("%s.IsComplete() = %v, want %v", status, got, want)
		}
	}
}

func TestStatusStringPanicsOnUnknownTag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unhandled Status tag")
		}
	}()
	_ = Status(99).String()
}

func TestTimeOffsetsAreDistinctAndOrdered(t *testing.T) {
	offsets := map[int]bool{}
	for _, tm := range AllTimes {
		off := tm.Offset()
		if off < 0 || off > 2 {
			t.Fatalf("%s.Offset() = %d, out of range", tm, off)
		}
		if offsets[off] {
			t.Fatalf("duplicate offset %d among AllTimes", off)
		}
		offsets[off] = true
	}
}

func TestTimeStringPanicsOnUnknownTag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unhandled Time tag")
		}
	}()
	_ = Time(99).String()
}
