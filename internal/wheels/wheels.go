// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package wheels publishes built and external python wheels to an object
// store and resolves lock files against it.
package wheels

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Artifact types, also the top level bucket prefixes.
const (
	TypeBuilt    = "built"
	TypeExternal = "external"
)

const (
	// DefaultPythonVersion is embedded in lock file names.
	DefaultPythonVersion = "3.13"
	cacheControl         = "public, max-age=15"
	frozenFile           = "frozen.txt"
	metadataFile         = "metadata.json"
)

// Builder uploads and locks the wheels of one workflow run.
type Builder struct {
	bucket        Bucket
	workflowID    string
	pythonVersion string
	hash          func(string) (string, error)
	now           func() time.Time
	logger        zerolog.Logger
}

// New creates a Builder for the workflow run workflowID.
func New(bucket Bucket, workflowID string, logger zerolog.Logger) (*Builder, error) {
	if bucket == nil {
		return nil, errors.New("invalid bucket (nil)")
	}
	if workflowID == "" {
		return nil, errors.New("invalid workflow id (empty)")
	}
	if strings.ContainsAny(workflowID, "-/ ") {
		return nil, errors.Errorf("invalid workflow id (%s)", workflowID)
	}
	return &Builder{
		bucket:        bucket,
		workflowID:    workflowID,
		pythonVersion: DefaultPythonVersion,
		hash:          hashFile,
		now:           time.Now,
		logger:        logger.With().Str("pkg", "wheels").Str("workflow_id", workflowID).Logger(),
	}, nil
}

// SetPythonVersion overrides the python version used in lock file names.
func (b *Builder) SetPythonVersion(v string) {
	if v != "" {
		b.pythonVersion = v
	}
}

// pythonDir is one targets/<platform>/py<N> directory.
type pythonDir struct {
	target string
	path   string
}

// pythonDirs lists the python version directories of every target.
func pythonDirs(targetsDir string) ([]pythonDir, error) {
	targets, err := os.ReadDir(targetsDir)
	if err != nil {
		return nil, errors.Wrap(err, "reading targets")
	}
	var dirs []pythonDir
	for _, target := range targets {
		if !target.IsDir() {
			continue
		}
		versions, err := os.ReadDir(filepath.Join(targetsDir, target.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "reading target %s", target.Name())
		}
		for _, v := range versions {
			if !v.IsDir() || !strings.HasPrefix(v.Name(), "py") {
				continue
			}
			dirs = append(dirs, pythonDir{target: target.Name(), path: filepath.Join(targetsDir, target.Name(), v.Name())})
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].path < dirs[j].path })
	return dirs, nil
}

func (b *Builder) objectURL(name string) string {
	return b.bucket.PublicURL() + "/" + name
}
