// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package defaults holds the default option values
package defaults

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// Listen defaults to all ipv4 interfaces on port 2609
	// valid formats:
	//      ip:port (e.g. 127.0.0.1:12345 - listen on 127.0.0.1, port 12345)
	//      ip (e.g. 127.0.0.1 - listen on 127.0.0.1, port default)
	//      port (e.g. 12345 - listen default, port 12345)
	//
	Listen = ":2609"

	// Debug is false by default
	Debug = false

	// LogLevel set to info by default
	LogLevel = "info"

	// LogPretty colored/formatted output to stderr
	LogPretty = false

	// CheckTimeout bounds a single instance run
	CheckTimeout = "10s"

	// WheelsBucket object storage bucket for the wheel index
	WheelsBucket = "circonus-checks-deps"

	// WheelsPythonVersion embedded in lock file names, <target>_<ver>.txt
	WheelsPythonVersion = "3.13"
)

var (
	// BasePath is the "base" directory
	//
	// expected installation structure:
	// base        (e.g. /opt/circonus/checks)
	//   /bin      (e.g. /opt/circonus/checks/bin)
	//   /etc      (e.g. /opt/circonus/checks/etc)
	//   /etc/conf.d (e.g. /opt/circonus/checks/etc/conf.d)
	BasePath = ""

	// EtcPath returns the default etc directory within base directory
	EtcPath = "" // (e.g. /opt/circonus/checks/etc)

	// ConfDPath returns the default integration configuration directory
	ConfDPath = "" // (e.g. /opt/circonus/checks/etc/conf.d)
)

func init() {
	var exePath string
	var resolvedExePath string
	var err error

	exePath, err = os.Executable()
	if err == nil {
		resolvedExePath, err = filepath.EvalSymlinks(exePath)
		if err == nil {
			BasePath = filepath.Clean(filepath.Join(filepath.Dir(resolvedExePath), "..")) // e.g. /opt/circonus/checks
		}
	}

	if err != nil {
		fmt.Printf("Unable to determine path to binary %v\n", err)
		os.Exit(1)
	}

	EtcPath = filepath.Join(BasePath, "etc")
	ConfDPath = filepath.Join(EtcPath, "conf.d")
}
