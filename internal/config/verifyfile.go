// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// verifyFile resolves fileName to an absolute path and confirms it is a
// readable regular file.
func verifyFile(fileName string) (string, error) {
	if fileName == "" {
		return "", errors.New("invalid file name (empty)")
	}

	absFileName, err := filepath.Abs(fileName)
	if err != nil {
		return "", errors.Wrap(err, "resolving path")
	}

	fi, err := os.Stat(absFileName)
	if err != nil {
		return "", errors.Wrap(err, "stat")
	}

	if !fi.Mode().IsRegular() {
		return "", errors.Errorf("%s: not a regular file", absFileName)
	}

	// stat does not report EPERM when the last directory on the path
	// is inaccessible, opening does
	f, err := os.Open(absFileName)
	if err != nil {
		return "", errors.Wrap(err, "open")
	}
	f.Close()

	return absFileName, nil
}
