// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package wheels

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Requirement is one pinned project==version line of frozen.txt.
type Requirement struct {
	Project string
	Version string
}

// LockMetadata is written next to the lock files.
type LockMetadata struct {
	WorkflowID    string    `json:"workflow_id"`
	PythonVersion string    `json:"python_version"`
	Generated     time.Time `json:"generated"`
	Targets       []string  `json:"targets"`
}

// Lock resolves the frozen requirements of every target against the bucket
// and writes <outDir>/resolved/<target>_<python>.txt plus
// <outDir>/metadata.json. A built wheel from the current workflow wins over
// an external wheel. Built wheels from other workflows are never used.
func (b *Builder) Lock(ctx context.Context, targetsDir, outDir string) error {
	dirs, err := pythonDirs(targetsDir)
	if err != nil {
		return err
	}

	lockDir := filepath.Join(outDir, "resolved")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return errors.Wrap(err, "creating lock dir")
	}

	listings := map[string][]Object{}
	list := func(prefix string) ([]Object, error) {
		if objs, ok := listings[prefix]; ok {
			return objs, nil
		}
		objs, err := b.bucket.List(ctx, prefix)
		if err != nil {
			return nil, err
		}
		listings[prefix] = objs
		return objs, nil
	}

	targets := []string{}
	for _, pd := range dirs {
		reqs, err := readFrozen(filepath.Join(pd.path, frozenFile))
		if os.IsNotExist(errors.Cause(err)) {
			b.logger.Warn().Str("target", pd.target).Msg("no frozen requirements, skipping")
			continue
		}
		if err != nil {
			return err
		}

		lines := make([]string, 0, len(reqs))
		for _, req := range reqs {
			line, err := b.resolve(pd.target, req, list)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}
		sort.Strings(lines)

		lockFile := filepath.Join(lockDir, fmt.Sprintf("%s_%s.txt", pd.target, b.pythonVersion))
		if err := os.WriteFile(lockFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
			return errors.Wrap(err, "writing lock file")
		}
		b.logger.Info().Str("target", pd.target).Str("file", lockFile).Int("requirements", len(lines)).Msg("locked")
		targets = append(targets, pd.target)
	}

	meta := LockMetadata{
		WorkflowID:    b.workflowID,
		PythonVersion: b.pythonVersion,
		Generated:     b.now().UTC(),
		Targets:       targets,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding metadata")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(outDir, metadataFile), append(data, '\n'), 0o644), "writing metadata")
}

// resolve returns the lock line for a requirement on target.
func (b *Builder) resolve(target string, req Requirement, list func(string) ([]Object, error)) (string, error) {
	project := NormalizeProjectName(req.Project)

	for _, artifact := range []string{TypeBuilt, TypeExternal} {
		objs, err := list(path.Join(artifact, project) + "/")
		if err != nil {
			return "", err
		}
		for _, o := range objs {
			fn, err := ParseFilename(path.Base(o.Name))
			if err != nil {
				continue
			}
			if NormalizeProjectName(fn.Name) != project || fn.Version != req.Version || !fn.Compatible(target) {
				continue
			}
			if artifact == TypeBuilt {
				if wid, ok := fn.WorkflowID(); !ok || wid != b.workflowID {
					continue
				}
			}
			return fmt.Sprintf("%s @ %s#sha256=%s", project, b.objectURL(o.Name), o.Metadata["sha256"]), nil
		}
	}

	return "", errors.Errorf("Could not find any wheels for target %s: %s==%s", target, req.Project, req.Version)
}

// readFrozen parses project==version lines, ignoring comments and markers.
func readFrozen(file string) ([]Requirement, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.Wrap(err, "opening frozen requirements")
	}
	defer f.Close()

	var reqs []Requirement
	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := scanner.Text()
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		project, version, ok := strings.Cut(line, "==")
		if !ok {
			return nil, errors.Errorf("%s:%d: unpinned requirement (%s)", file, n, line)
		}
		reqs = append(reqs, Requirement{Project: strings.TrimSpace(project), Version: strings.TrimSpace(version)})
	}
	return reqs, errors.Wrap(scanner.Err(), "reading frozen requirements")
}
