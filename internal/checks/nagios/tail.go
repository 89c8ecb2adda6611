// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package nagios

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// tailer reads the lines appended to a file since the previous read. The
// first read starts at the end of the file. A truncated or replaced file is
// read from the start.
type tailer struct {
	path   string
	offset int64
	info   os.FileInfo
	primed bool
	parse  func(line string) bool
}

func newTailer(path string, parse func(line string) bool) *tailer {
	return &tailer{path: path, parse: parse}
}

// reset drops the position, the next read starts at the end of the file.
func (t *tailer) reset() {
	t.offset = 0
	t.info = nil
	t.primed = false
}

// read hands every complete new line to parse and returns the number of
// lines parse accepted.
func (t *tailer) read() (int, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return 0, errors.Wrap(err, "opening")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat")
	}

	switch {
	case !t.primed:
		t.offset = info.Size()
		t.primed = true
	case t.info != nil && !os.SameFile(t.info, info):
		t.offset = 0 // rotated
	case info.Size() < t.offset:
		t.offset = 0 // truncated
	}
	t.info = info

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "seeking")
	}

	matched := 0
	rd := bufio.NewReader(f)
	for {
		line, err := rd.ReadString('\n')
		if err == io.EOF {
			// partial lines are left for the next read
			break
		}
		if err != nil {
			return matched, errors.Wrap(err, "reading")
		}
		t.offset += int64(len(line))
		if t.parse(trimEOL(line)) {
			matched++
		}
	}

	return matched, nil
}

func trimEOL(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
