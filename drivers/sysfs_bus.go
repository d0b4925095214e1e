package drivers

import (
	"bytes"
	"io"
	"os"
	"path"
	"regexp"

	"github.com/pkg/errors"
)

const sysfsBusPath = "/sys/bus/w1/devices"
const sysfsBusName = "sysfs"
const slaveFileName = "w1_slave"
const anyFamilyPattern = "[0-9a-f]{2}"

const readChunkSize = 128

// SysfsBus reads 1-wire slaves through the files the kernel w1 driver
// exposes under /sys/bus/w1/devices. Path can point somewhere else for
// tests or unusual mounts.
type SysfsBus struct {
	Path string

	ready bool
}

func (sb *SysfsBus) root() string {
	if len(sb.Path) > 0 {
		return sb.Path
	}
	return sysfsBusPath
}

func (sb *SysfsBus) Setup() (err error) {
	_, err = os.ReadDir(sb.root())
	if err != nil {
		err = errors.Wrapf(err, "failed to setup sysfs bus, cannot read device dir (%s)", sb.root())
		return
	}

	sb.ready = true
	return
}

func (sb *SysfsBus) Close() error {
	return nil
}

func (sb *SysfsBus) String() string {
	return sysfsBusName
}

func (sb *SysfsBus) IsReady() bool {
	return sb.ready
}

func (sb *SysfsBus) ListDevices(familyPattern string) (devices []string, err error) {
	if len(familyPattern) == 0 {
		familyPattern = anyFamilyPattern
	}

	namePattern, err := regexp.Compile("^(?:" + familyPattern + ")-[0-9a-f]{12}$")
	if err != nil {
		err = errors.Wrapf(err, "bad family pattern: %s", familyPattern)
		return
	}

	entries, err := os.ReadDir(sb.root())
	if err != nil {
		err = errors.Wrapf(err, "failed to list devices under %s", sb.root())
		return
	}

	for _, entry := range entries {
		if namePattern.MatchString(entry.Name()) {
			devices = append(devices, entry.Name())
		}
	}

	return
}

func (sb *SysfsBus) Open(device string) (LineSource, error) {
	file, err := os.Open(path.Join(sb.root(), device, slaveFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open read cycle for device %s", device)
	}

	return &fileLineSource{reader: file, closer: file}, nil
}

// fileLineSource buffers bytes from a reader and hands out complete
// lines. A read that returns no bytes and no error surfaces as "no line
// yet" so callers can wait for the next readability signal.
type fileLineSource struct {
	reader io.Reader
	closer io.Closer

	buf []byte
	eof bool
}

func (fs *fileLineSource) ReadLine() (line string, ok bool, err error) {
	for {
		if i := bytes.IndexByte(fs.buf, '\n'); i >= 0 {
			line = string(fs.buf[:i])
			fs.buf = fs.buf[i+1:]
			ok = true
			return
		}

		if fs.eof {
			if len(fs.buf) > 0 {
				// Trailing line without a terminator.
				line = string(fs.buf)
				fs.buf = nil
				ok = true
				return
			}
			err = io.EOF
			return
		}

		chunk := make([]byte, readChunkSize)
		n, readErr := fs.reader.Read(chunk)
		fs.buf = append(fs.buf, chunk[:n]...)

		switch {
		case readErr == io.EOF:
			fs.eof = true
		case readErr != nil:
			err = readErr
			return
		case n == 0:
			// Nothing available yet.
			return
		}
	}
}

func (fs *fileLineSource) Close() error {
	return fs.closer.Close()
}
