package drivers

import (
	"io"
	"regexp"
	"sort"

	"github.com/pkg/errors"
)

const mockBusName = "mock_bus"

// MockLineSource replays a scripted read cycle. Stall makes the first
// ReadLine calls report "no line yet" that many times, to exercise the
// wait-for-readability path.
type MockLineSource struct {
	Lines []string
	Stall int

	pos        int
	CloseCount int
}

func (ms *MockLineSource) ReadLine() (line string, ok bool, err error) {
	if ms.Stall > 0 {
		ms.Stall--
		return
	}

	if ms.pos >= len(ms.Lines) {
		err = io.EOF
		return
	}

	line = ms.Lines[ms.pos]
	ms.pos++
	ok = true
	return
}

func (ms *MockLineSource) Close() error {
	ms.CloseCount++
	return nil
}

// MockBus serves scripted read cycles for a fixed set of devices.
type MockBus struct {
	// Cycles holds the lines served per device; a device missing from
	// the map fails to open, like an unplugged sensor.
	Cycles map[string][]string
	// StallFirst applies to every opened source.
	StallFirst int

	ready  bool
	opened []*MockLineSource
}

func (mb *MockBus) Setup() error {
	mb.ready = true
	return nil
}

func (mb *MockBus) Close() error {
	return nil
}

func (mb *MockBus) String() string {
	return mockBusName
}

func (mb *MockBus) IsReady() bool {
	return mb.ready
}

func (mb *MockBus) ListDevices(familyPattern string) (devices []string, err error) {
	if len(familyPattern) == 0 {
		familyPattern = anyFamilyPattern
	}

	namePattern, err := regexp.Compile("^(?:" + familyPattern + ")-[0-9a-f]{12}$")
	if err != nil {
		err = errors.Wrapf(err, "bad family pattern: %s", familyPattern)
		return
	}

	for device := range mb.Cycles {
		if namePattern.MatchString(device) {
			devices = append(devices, device)
		}
	}
	sort.Strings(devices)

	return
}

func (mb *MockBus) Open(device string) (LineSource, error) {
	lines, found := mb.Cycles[device]
	if !found {
		return nil, errors.Errorf("mock device %s not present", device)
	}

	source := &MockLineSource{Lines: lines, Stall: mb.StallFirst}
	mb.opened = append(mb.opened, source)
	return source, nil
}

// OpenedSources returns every source handed out so far, for asserting
// close behavior in tests.
func (mb *MockBus) OpenedSources() []*MockLineSource {
	return mb.opened
}
