// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package wheels

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Summary of an upload run, object names relative to the bucket.
type Summary struct {
	Uploaded []string
	Skipped  []string
}

type localWheel struct {
	project  string // normalized
	meta     *Metadata
	file     string
	artifact string
}

// Upload publishes every wheel under targets/<platform>/py*/wheels/<type>/
// and refreshes the html indexes of the artifact types it touched.
func (b *Builder) Upload(ctx context.Context, targetsDir string) (*Summary, error) {
	dirs, err := pythonDirs(targetsDir)
	if err != nil {
		return nil, err
	}

	sum := &Summary{}
	types := map[string]bool{}
	for _, pd := range dirs {
		wheelDir := filepath.Join(pd.path, "wheels")
		entries, err := os.ReadDir(wheelDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading wheels")
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			artifact := entry.Name()
			if artifact != TypeBuilt && artifact != TypeExternal {
				b.logger.Warn().Str("dir", filepath.Join(wheelDir, artifact)).Msg("unknown artifact type, skipping")
				continue
			}
			types[artifact] = true
			b.logger.Info().Str("target", pd.target).Str("type", artifact).Msg("processing wheels")

			wheels, err := b.localWheels(filepath.Join(wheelDir, artifact), artifact)
			if err != nil {
				return nil, err
			}
			for i, w := range wheels {
				b.logger.Info().
					Int("n", i+1).
					Int("of", len(wheels)).
					Str("name", w.meta.Name).
					Str("version", w.meta.Version).
					Msg("wheel")
				name, uploaded, err := b.uploadWheel(ctx, w)
				if err != nil {
					return nil, err
				}
				if uploaded {
					sum.Uploaded = append(sum.Uploaded, name)
				} else {
					sum.Skipped = append(sum.Skipped, name)
				}
			}
		}
	}

	artifacts := make([]string, 0, len(types))
	for t := range types {
		artifacts = append(artifacts, t)
	}
	sort.Strings(artifacts)
	for _, t := range artifacts {
		if err := b.writeIndex(ctx, t); err != nil {
			return nil, err
		}
	}

	return sum, nil
}

// localWheels reads the metadata of the wheels in dir sorted by project.
func (b *Builder) localWheels(dir, artifact string) ([]localWheel, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*"+wheelExt))
	if err != nil {
		return nil, errors.Wrap(err, "listing wheels")
	}
	wheels := make([]localWheel, 0, len(files))
	for _, file := range files {
		meta, err := ReadMetadata(file)
		if err != nil {
			return nil, err
		}
		if !ValidProjectName(meta.Name) {
			return nil, errors.Errorf("invalid project name %q found in wheel: %s", meta.Name, filepath.Base(file))
		}
		wheels = append(wheels, localWheel{
			project:  NormalizeProjectName(meta.Name),
			meta:     meta,
			file:     file,
			artifact: artifact,
		})
	}
	sort.SliceStable(wheels, func(i, j int) bool {
		if wheels[i].project != wheels[j].project {
			return wheels[i].project < wheels[j].project
		}
		return filepath.Base(wheels[i].file) < filepath.Base(wheels[j].file)
	})
	return wheels, nil
}

// uploadWheel uploads one wheel unless an equivalent object is already
// stored. It returns the object name representing the wheel.
func (b *Builder) uploadWheel(ctx context.Context, w localWheel) (string, bool, error) {
	digest, err := b.hash(w.file)
	if err != nil {
		return "", false, errors.Wrapf(err, "hashing %s", w.file)
	}
	base := filepath.Base(w.file)
	prefix := path.Join(w.artifact, w.project) + "/"

	var name string
	if w.artifact == TypeExternal {
		// published distributions never change
		name = prefix + base
		obj, err := b.bucket.Attrs(ctx, name)
		if err != nil {
			return "", false, err
		}
		if obj != nil {
			b.logger.Info().Str("object", name).Msg("already exists")
			return name, false, nil
		}
	} else {
		local, err := ParseFilename(base)
		if err != nil {
			return "", false, err
		}
		latest, err := b.latestBuild(ctx, prefix, local)
		if err != nil {
			return "", false, err
		}
		if latest != nil && latest.Metadata["sha256"] == digest {
			b.logger.Info().Str("object", latest.Name).Msg("already exists with the same hash")
			return latest.Name, false, nil
		}
		tagged, err := TagWorkflowID(base, b.workflowID)
		if err != nil {
			return "", false, err
		}
		name = prefix + tagged
	}

	f, err := os.Open(w.file)
	if err != nil {
		return "", false, errors.Wrap(err, "opening wheel")
	}
	defer f.Close()

	requiresPython := strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(w.meta.RequiresPython)
	err = b.bucket.Upload(ctx, name, f, UploadOptions{
		Metadata: map[string]string{"requires-python": requiresPython, "sha256": digest},
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "uploading %s", name)
	}
	b.logger.Info().Str("object", name).Msg("uploaded")
	return name, true, nil
}

// latestBuild returns the stored build a new wheel is compared against: the
// current workflow's build if present, otherwise the highest numbered legacy
// build. Builds from other workflows are never reused.
func (b *Builder) latestBuild(ctx context.Context, prefix string, local Filename) (*Object, error) {
	objs, err := b.bucket.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var (
		latest     *Object
		latestNum  int64 = -2
		currentRun *Object
	)
	for i := range objs {
		fn, err := ParseFilename(path.Base(objs[i].Name))
		if err != nil || !fn.sameArtifact(local) {
			continue
		}
		if wid, ok := fn.WorkflowID(); ok {
			if wid == b.workflowID {
				currentRun = &objs[i]
			}
			continue
		}
		if n := fn.BuildNumber(); n > latestNum {
			latest, latestNum = &objs[i], n
		}
	}
	if currentRun != nil {
		return currentRun, nil
	}
	return latest, nil
}
