// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package envoy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/circonus-labs/circonus-checks/internal/tags"
)

var (
	// ErrUnknownMetric the stat does not match the catalog.
	ErrUnknownMetric = fmt.Errorf("unknown metric")

	// ErrUnknownTags the stat carries fewer tag segments than any known shape.
	ErrUnknownTags = fmt.Errorf("unknown tags")
)

// renamed tags, the catalog holds the legacy names
var legacyTags = map[string]string{
	"cluster_name":         "envoy_cluster",
	"virtual_cluster_name": "virtual_envoy_cluster",
}

var percentileSuffix = map[string]string{
	"P0":    "0percentile",
	"P25":   "25percentile",
	"P50":   "50percentile",
	"P75":   "75percentile",
	"P90":   "90percentile",
	"P95":   "95percentile",
	"P99":   "99percentile",
	"P99.5": "99_5percentile",
	"P99.9": "99_9percentile",
	"P100":  "100percentile",
}

// P<pct>(<interval>,<cumulative>)
var histogramRx = regexp.MustCompile(`(P[0-9.]+)\(([^,]+),`)

type node struct {
	children map[string]*node
	tagSets  [][]string // tag groups that may follow the segment, longest first
	optional bool       // some stats have no tags after the segment
	leaf     bool
	typ      sink.Type
}

func newNode() *node {
	return &node{children: map[string]*node{}}
}

func isPlaceholder(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// buildTree indexes the catalog by literal segment.
func buildTree(stats []stat) *node {
	root := newNode()
	for _, s := range stats {
		n := root
		parts := strings.Split(s.template, ".")
		for i := 0; i < len(parts); {
			child, ok := n.children[parts[i]]
			if !ok {
				child = newNode()
				n.children[parts[i]] = child
			}
			n = child
			i++

			var group []string
			for i < len(parts) && isPlaceholder(parts[i]) {
				group = append(group, strings.Trim(parts[i], "{}"))
				i++
			}
			n.addTags(group)
		}
		n.leaf = true
		n.typ = s.typ
	}
	return root
}

func (n *node) addTags(group []string) {
	if len(group) == 0 {
		n.optional = true
		return
	}
	key := strings.Join(group, ".")
	for _, g := range n.tagSets {
		if strings.Join(g, ".") == key {
			return
		}
	}
	n.tagSets = append(n.tagSets, group)
	for i := len(n.tagSets) - 1; i > 0 && len(n.tagSets[i]) > len(n.tagSets[i-1]); i-- {
		n.tagSets[i], n.tagSets[i-1] = n.tagSets[i-1], n.tagSets[i]
	}
}

// minTags is the number of segments that must be consumed as tags before a
// child segment can be matched.
func (n *node) minTags() int {
	if n.optional || len(n.tagSets) == 0 {
		return 0
	}
	return len(n.tagSets[len(n.tagSets)-1])
}

// assign names the collected tag segments with the longest tag group that
// fits. The last tag of the group takes the remaining segments.
func (n *node) assign(values []string) ([][2]string, error) {
	for _, group := range n.tagSets {
		if len(group) > len(values) {
			continue
		}
		out := make([][2]string, len(group))
		for i, name := range group {
			if i == len(group)-1 {
				out[i] = [2]string{name, strings.Join(values[i:], ".")}
				break
			}
			out[i] = [2]string{name, values[i]}
		}
		return out, nil
	}
	return nil, ErrUnknownTags
}

// Parser splits envoy stat names into a metric name and tags.
type Parser struct {
	root   *node
	legacy bool
}

// NewParser returns a parser over the built in catalog. With legacy set the
// renamed cluster tags are also emitted under their old names.
func NewParser(legacy bool) *Parser {
	return &Parser{root: buildTree(catalog), legacy: legacy}
}

// Parse returns the metric name (without prefix), its tags and type.
func (p *Parser) Parse(stat string) (string, []string, sink.Type, error) {
	n := p.root
	metric := []string{}
	pairs := [][2]string{}
	pending := []string{}

	for _, part := range strings.Split(stat, ".") {
		if child, ok := n.children[part]; ok && len(pending) >= n.minTags() {
			if len(pending) > 0 {
				tp, err := n.assign(pending)
				if err != nil {
					return "", nil, 0, fmt.Errorf("%w: %s", err, stat)
				}
				pairs = append(pairs, tp...)
				pending = pending[:0]
			}
			metric = append(metric, part)
			n = child
			continue
		}
		if len(n.tagSets) == 0 {
			return "", nil, 0, fmt.Errorf("%w: %s", ErrUnknownMetric, stat)
		}
		pending = append(pending, part)
	}

	if len(pending) > 0 {
		tp, err := n.assign(pending)
		if err != nil {
			return "", nil, 0, fmt.Errorf("%w: %s", err, stat)
		}
		pairs = append(pairs, tp...)
	}
	if !n.leaf {
		return "", nil, 0, fmt.Errorf("%w: %s", ErrUnknownMetric, stat)
	}

	tagList := make([]string, 0, len(pairs)+1)
	for _, kv := range pairs {
		if renamed, ok := legacyTags[kv[0]]; ok {
			tagList = append(tagList, tags.KV(renamed, kv[1]))
			if !p.legacy {
				continue
			}
		}
		tagList = append(tagList, tags.KV(kv[0], kv[1]))
	}

	return strings.Join(metric, "."), tagList, n.typ, nil
}

// Percentiles parses an envoy histogram summary into suffix, value pairs
// using the interval values. Unknown percentiles and NaN are skipped.
func Percentiles(value string) map[string]float64 {
	out := map[string]float64{}
	for _, m := range histogramRx.FindAllStringSubmatch(value, -1) {
		suffix, ok := percentileSuffix[m[1]]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		out[suffix] = v
	}
	return out
}
