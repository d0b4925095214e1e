package drivers

// LineSource yields the text lines of one driver read cycle without ever
// blocking the caller.
type LineSource interface {
	// ReadLine returns the next complete line, without its terminator.
	// ok is false while no full line is buffered yet; err reports
	// io.EOF once the cycle is exhausted, or the underlying read error.
	ReadLine() (line string, ok bool, err error)
	Close() error
}

// Bus lists the slave devices of a 1-wire master and opens one read
// cycle per device.
type Bus interface {
	Setup() error
	Close() error
	String() string
	IsReady() bool
	// ListDevices returns the identifiers of attached devices whose
	// family code matches the pattern. An empty pattern matches any
	// two-hex-digit family.
	ListDevices(familyPattern string) ([]string, error)
	// Open starts a fresh read cycle on the device. Reading the
	// returned source triggers the conversion on the slave.
	Open(device string) (LineSource, error)
}
