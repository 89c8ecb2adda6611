// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package wheels

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	wheelExt    = ".whl"
	workflowTag = "WID"
)

var (
	validProjectName = regexp.MustCompile(`(?i)^([A-Z0-9]|[A-Z0-9][A-Z0-9._-]*[A-Z0-9])$`)
	unnormalizedName = regexp.MustCompile(`[-_.]+`)
)

// Metadata is the core metadata of a wheel.
type Metadata struct {
	Name           string
	Version        string
	RequiresPython string
}

// ReadMetadata reads the METADATA file in the .dist-info directory of a wheel.
func ReadMetadata(wheel string) (*Metadata, error) {
	zr, err := zip.OpenReader(wheel)
	if err != nil {
		return nil, errors.Wrap(err, "opening wheel")
	}
	defer zr.Close()

	distInfo := ""
	for _, f := range zr.File {
		root := strings.SplitN(f.Name, "/", 2)[0]
		if strings.HasSuffix(root, ".dist-info") {
			distInfo = root
			break
		}
	}
	if distInfo == "" {
		return nil, errors.Errorf("could not find the .dist-info directory in wheel: %s", filepath.Base(wheel))
	}

	f, err := zr.Open(distInfo + "/METADATA")
	if err != nil {
		return nil, errors.Errorf("could not find a METADATA file in the %s directory", distInfo)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s/METADATA", distInfo)
	}
	return &Metadata{
		Name:           msg.Header.Get("Name"),
		Version:        msg.Header.Get("Version"),
		RequiresPython: msg.Header.Get("Requires-Python"),
	}, nil
}

// ValidProjectName reports whether name is a valid distribution name.
func ValidProjectName(name string) bool {
	return validProjectName.MatchString(name)
}

// NormalizeProjectName folds runs of '-', '_' and '.' to '-' and lowercases.
func NormalizeProjectName(name string) string {
	return strings.ToLower(unnormalizedName.ReplaceAllString(name, "-"))
}

// Filename holds the components of a wheel file name,
// {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
type Filename struct {
	Name     string
	Version  string
	Build    string
	Python   string
	ABI      string
	Platform string
}

// ParseFilename splits a wheel file name into its components.
func ParseFilename(name string) (Filename, error) {
	var fn Filename
	if !strings.HasSuffix(name, wheelExt) {
		return fn, errors.Errorf("not a wheel (%s)", name)
	}
	parts := strings.Split(strings.TrimSuffix(name, wheelExt), "-")
	switch len(parts) {
	case 5:
	case 6:
		fn.Build = parts[2]
		parts = append(parts[:2], parts[3:]...)
	default:
		return fn, errors.Errorf("invalid wheel file name (%s)", name)
	}
	fn.Name, fn.Version, fn.Python, fn.ABI, fn.Platform = parts[0], parts[1], parts[2], parts[3], parts[4]
	return fn, nil
}

// String reassembles the file name.
func (fn Filename) String() string {
	parts := []string{fn.Name, fn.Version}
	if fn.Build != "" {
		parts = append(parts, fn.Build)
	}
	parts = append(parts, fn.Python, fn.ABI, fn.Platform)
	return strings.Join(parts, "-") + wheelExt
}

// TagWorkflowID sets the build tag of a wheel file name to <workflowID>WID.
func TagWorkflowID(name, workflowID string) (string, error) {
	fn, err := ParseFilename(name)
	if err != nil {
		return "", err
	}
	fn.Build = workflowID + workflowTag
	return fn.String(), nil
}

// WorkflowID returns the workflow id from the build tag, if any.
func (fn Filename) WorkflowID() (string, bool) {
	if !strings.HasSuffix(fn.Build, workflowTag) {
		return "", false
	}
	return strings.TrimSuffix(fn.Build, workflowTag), true
}

// BuildNumber is the numeric build tag of a legacy build, -1 without one.
func (fn Filename) BuildNumber() int64 {
	n, err := strconv.ParseInt(fn.Build, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// sameArtifact reports whether two file names differ only by build tag.
func (fn Filename) sameArtifact(o Filename) bool {
	return fn.Name == o.Name && fn.Version == o.Version && fn.Python == o.Python && fn.ABI == o.ABI && fn.Platform == o.Platform
}

// Compatible reports whether the platform tag can be installed on a target
// named <os>-<arch>, e.g. linux-x86_64.
func (fn Filename) Compatible(target string) bool {
	if fn.Platform == "any" {
		return true
	}
	osName, arch, ok := strings.Cut(target, "-")
	if !ok {
		return true
	}
	plat := strings.ToLower(fn.Platform)
	switch osName {
	case "linux":
		if !strings.Contains(plat, "linux") {
			return false
		}
	case "macos":
		if !strings.HasPrefix(plat, "macosx") {
			return false
		}
	case "windows":
		if !strings.HasPrefix(plat, "win") {
			return false
		}
	}
	for _, alias := range archAliases[arch] {
		if strings.Contains(plat, alias) {
			return true
		}
	}
	return len(archAliases[arch]) == 0
}

var archAliases = map[string][]string{
	"x86_64":  {"x86_64", "amd64", "universal2"},
	"aarch64": {"aarch64", "arm64", "universal2"},
	"arm64":   {"aarch64", "arm64", "universal2"},
}

// hashFile returns the hex sha256 digest of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
