// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package release holds build identity for the checks binary
package release

import (
	"expvar"
	"runtime"
)

const (
	// NAME is the name of this application
	NAME = "circonus-checks"
	// ENVPREFIX is the environment variable prefix
	ENVPREFIX = "CC"
)

// vars are manipulated at link time (see goreleaser)
var (
	// COMMIT of release in git repo
	COMMIT = "none"
	// DATE of release
	DATE = "unknown"
	// TAG of release
	TAG = ""
	// VERSION of the release
	VERSION = "dev"
)

// Info contains release information
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	Tag       string `json:"tag"`
	GoVersion string `json:"go_version"`
}

func init() {
	expvar.Publish("app", expvar.Func(info))
}

// String renders the version line printed by --version
func (i *Info) String() string {
	return i.Name + " v" + i.Version + " - commit: " + i.Commit + ", date: " + i.BuildDate + ", tag: " + i.Tag
}

// Current returns the release information of the running binary
func Current() *Info {
	return info().(*Info)
}

func info() interface{} {
	return &Info{
		Name:      NAME,
		Version:   VERSION,
		Commit:    COMMIT,
		BuildDate: DATE,
		Tag:       TAG,
		GoVersion: runtime.Version(),
	}
}
