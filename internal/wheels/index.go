// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package wheels

import (
	"context"
	"fmt"
	"html"
	"path"
	"sort"
	"strings"
)

const indexName = "index.html"

// writeIndex regenerates the simple repository pages of an artifact type,
// <type>/index.html linking each project and <type>/<project>/index.html
// linking each wheel with its digest.
func (b *Builder) writeIndex(ctx context.Context, artifact string) error {
	objs, err := b.bucket.List(ctx, artifact+"/")
	if err != nil {
		return err
	}

	projects := map[string][]Object{}
	for _, o := range objs {
		parts := strings.Split(o.Name, "/")
		if len(parts) != 3 || !strings.HasSuffix(parts[2], wheelExt) {
			continue
		}
		projects[parts[1]] = append(projects[parts[1]], o)
	}
	names := make([]string, 0, len(projects))
	for p := range projects {
		names = append(names, p)
	}
	sort.Strings(names)

	b.logger.Info().Str("type", artifact).Int("projects", len(names)).Msg("updating listing")

	root := pageHeader("Agent integrations dependencies")
	for _, project := range names {
		root = append(root, fmt.Sprintf(`    <a href="%s/">%s</a><br>`, html.EscapeString(project), html.EscapeString(project)))

		wheels := projects[project]
		sort.Slice(wheels, func(i, j int) bool {
			return strings.ToLower(wheels[i].Name) < strings.ToLower(wheels[j].Name)
		})
		page := pageHeader(project)
		for _, w := range wheels {
			file := path.Base(w.Name)
			attr := ""
			if rp := w.Metadata["requires-python"]; rp != "" {
				attr = fmt.Sprintf(` data-requires-python="%s"`, rp)
			}
			page = append(page, fmt.Sprintf(`    <a href="%s#sha256=%s"%s>%s</a><br>`, file, w.Metadata["sha256"], attr, file))
		}
		if err := b.putPage(ctx, path.Join(artifact, project, indexName), page); err != nil {
			return err
		}
	}

	return b.putPage(ctx, path.Join(artifact, indexName), root)
}

func pageHeader(title string) []string {
	return []string{
		"<!DOCTYPE html>",
		"<html>",
		"  <body>",
		"    <h1>" + html.EscapeString(title) + "</h1>",
	}
}

func (b *Builder) putPage(ctx context.Context, name string, lines []string) error {
	lines = append(lines, "  </body>", "</html>", "")
	return b.bucket.Upload(ctx, name, strings.NewReader(strings.Join(lines, "\n")), UploadOptions{
		ContentType:  "text/html",
		CacheControl: cacheControl,
	})
}
