package drivers

import (
	"io"
	"testing"
)

func assertInts(t testing.TB, got, want int) {
	t.Helper()

	if got != want {
		t.Errorf("got: %d, want: %d", got, want)
	}
}

func assertStringSlices(t testing.TB, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Errorf("len(got) = %d len(want) = %d", len(got), len(want))
		return
	}

	for key, val := range got {
		if want[key] != val {
			t.Errorf("for key [%d] got: %s want: %s", key, val, want[key])
		}
	}
}

func TestMockBusSetup(t *testing.T) {
	mb := MockBus{}

	if mb.IsReady() {
		t.Error("expected bus not ready before Setup")
	}

	mb.Setup()
	if !mb.IsReady() {
		t.Error("expected bus ready after Setup")
	}
}

func TestMockBusListDevices(t *testing.T) {
	mb := MockBus{Cycles: map[string][]string{
		"28-000005e2fdc3": nil,
		"28-0000066ba7f1": nil,
		"10-0008039a2f11": nil,
	}}
	mb.Setup()

	devices, err := mb.ListDevices("")
	if err != nil {
		t.Fatalf("ListDevices returned err: %v", err)
	}
	assertStringSlices(t, devices, []string{"10-0008039a2f11", "28-000005e2fdc3", "28-0000066ba7f1"})

	devices, err = mb.ListDevices("28")
	if err != nil {
		t.Fatalf("ListDevices returned err: %v", err)
	}
	assertStringSlices(t, devices, []string{"28-000005e2fdc3", "28-0000066ba7f1"})

	_, err = mb.ListDevices("[")
	if err == nil {
		t.Error("expected error for malformed family pattern")
	}
}

func TestMockBusOpenMissingDevice(t *testing.T) {
	mb := MockBus{Cycles: map[string][]string{}}
	mb.Setup()

	_, err := mb.Open("28-000005e2fdc3")
	if err == nil {
		t.Error("expected error opening a device that is not present")
	}
}

func TestMockLineSourceReplay(t *testing.T) {
	source := &MockLineSource{Lines: []string{"7f YES", "28 t=21562"}}

	line, ok, err := source.ReadLine()
	if !ok || err != nil {
		t.Fatalf("first ReadLine got ok=%v err=%v", ok, err)
	}
	if line != "7f YES" {
		t.Errorf("got line: %q", line)
	}

	line, ok, err = source.ReadLine()
	if !ok || err != nil {
		t.Fatalf("second ReadLine got ok=%v err=%v", ok, err)
	}
	if line != "28 t=21562" {
		t.Errorf("got line: %q", line)
	}

	_, ok, err = source.ReadLine()
	if ok || err != io.EOF {
		t.Errorf("expected EOF after replay, got ok=%v err=%v", ok, err)
	}

	source.Close()
	assertInts(t, source.CloseCount, 1)
}

func TestMockLineSourceStall(t *testing.T) {
	source := &MockLineSource{Lines: []string{"7f YES"}, Stall: 2}

	for i := 0; i < 2; i++ {
		_, ok, err := source.ReadLine()
		if ok || err != nil {
			t.Fatalf("stalled ReadLine got ok=%v err=%v", ok, err)
		}
	}

	line, ok, err := source.ReadLine()
	if !ok || err != nil || line != "7f YES" {
		t.Errorf("after stall got line=%q ok=%v err=%v", line, ok, err)
	}
}
