// Copyright © 2018 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package tags builds the deterministic key:value tag sets attached to
// emissions and encodes them as stream tags on metric names.
package tags

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/circonus-labs/circonus-checks/internal/config"
	cgm "github.com/circonus-labs/circonus-gometrics/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Tag aliases cgm's Tag to centralize definition
type Tag = cgm.Tag

// Tags aliases cgm's Tags to centralize definition
type Tags = cgm.Tags

const (
	// Delimiter defines character separating category from value in a tag e.g. location:london
	Delimiter = ":"
	// Separator defines character separating tags in a list e.g. os:centos,location:sfo
	Separator = ","

	MAX_TAGS = 256 //nolint: golint
)

var (
	baseTags   *[]string
	baseTagsmu sync.Mutex
)

// GetBaseTags returns checks.tags as a normalized list. Every emission
// carries at least this set.
func GetBaseTags() []string {
	baseTagsmu.Lock()
	defer baseTagsmu.Unlock()

	if baseTags != nil {
		return append([]string(nil), *baseTags...)
	}

	// checks.tags is a comma separated list of key:value pairs, viper
	// handles string slices differently between the command line and
	// the environment and tag values may contain spaces
	tagSpec := viper.GetString(config.KeyCheckTags)

	// systemd ExecStart=... --check-tags="c1:v1,c2:v1" leaves the quotes in place
	tagSpec = strings.Trim(tagSpec, `"`)

	list := []string{}
	if tagSpec != "" {
		list = Normalize(strings.Split(tagSpec, Separator))
	}
	baseTags = &list

	return append([]string(nil), list...)
}

// KV renders a single key:value tag.
func KV(key, value string) string {
	return key + Delimiter + value
}

// Normalize returns a sorted, de-duplicated copy of list with surrounding
// whitespace removed and empty entries dropped. The input is never modified.
func Normalize(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, t := range list {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Merge combines tag lists into a new normalized list. None of the inputs
// are aliased by the result, so per-entity tags never leak into a shared set.
func Merge(lists ...[]string) []string {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	all := make([]string, 0, n)
	for _, l := range lists {
		all = append(all, l...)
	}
	return Normalize(all)
}

// FromList convert list of tags []string{"cat:val","cat:val",...} into a Tags structure
func FromList(tagList []string) Tags {
	if len(tagList) == 0 {
		return Tags{}
	}

	tags := make(Tags, 0, len(tagList))
	for _, tag := range tagList {
		t := strings.SplitN(tag, Delimiter, 2)
		if len(t) != 2 {
			log.Warn().Int("num", len(t)).Str("tag", tag).Msg("invalid tag format, ignoring")
			continue // must be *only* two
		}
		tags = append(tags, Tag{Category: t[0], Value: t[1]})
	}

	return tags
}

// MetricNameWithStreamTags will encode tags as stream tags into supplied metric name.
// Note: if metric name already has stream tags it is assumed the metric name and
// embedded stream tags are being managed manually and calling this method will have no effect.
func MetricNameWithStreamTags(metric string, tags Tags) string {
	if len(tags) == 0 {
		return metric
	}

	if strings.Contains(metric, "|ST[") {
		return metric
	}

	taglist := EncodeMetricStreamTags(tags)
	if taglist != "" {
		return metric + "|ST[" + taglist + "]"
	}

	return metric
}

// EncodeMetricStreamTags encodes Tags into a string suitable for use with
// stream tags. Tags directly embedded into metric names using the
// `metric_name|ST[<tags>]` syntax.
func EncodeMetricStreamTags(tags Tags) string {
	if len(tags) == 0 {
		return ""
	}

	tmpTags := EncodeMetricTags(tags)
	if len(tmpTags) == 0 {
		return ""
	}

	tagList := make([]string, 0, len(tmpTags))
	encodeFmt := `b"%s"`
	encodedSig := `b"` // has cat or val been previously (or manually) base64 encoded and formatted
	for i, tag := range tmpTags {
		if i >= MAX_TAGS {
			log.Warn().Int("num", len(tags)).Int("max", MAX_TAGS).Msg("ignoring tags over max")
			break
		}
		tagParts := strings.SplitN(tag, Delimiter, 2)
		if len(tagParts) != 2 {
			continue
		}
		tc := tagParts[0]
		tv := tagParts[1]
		if !strings.HasPrefix(tc, encodedSig) {
			tc = fmt.Sprintf(encodeFmt, base64.StdEncoding.EncodeToString([]byte(strings.ToLower(tc))))
		}
		if !strings.HasPrefix(tv, encodedSig) {
			tv = fmt.Sprintf(encodeFmt, base64.StdEncoding.EncodeToString([]byte(tv)))
		}
		tagList = append(tagList, tc+Delimiter+tv)
	}

	return strings.Join(tagList, Separator)
}

// EncodeMetricTags encodes Tags into a sorted, unique list of cat:val strings.
func EncodeMetricTags(tags Tags) []string {
	if len(tags) == 0 {
		return []string{}
	}

	uniqueTags := make(map[string]bool)
	encodedSig := `b"`
	for i, t := range tags {
		if i >= MAX_TAGS {
			log.Warn().Int("num", len(tags)).Int("max", MAX_TAGS).Msg("too many tags, ignoring remainder")
			break
		}
		tc := t.Category
		tv := t.Value
		if !strings.HasPrefix(tc, encodedSig) {
			tc = strings.Map(removeSpaces, strings.ToLower(t.Category))
		}
		if tc == "" || tv == "" {
			log.Warn().Str("cat", t.Category).Str("val", t.Value).Msg("invalid tag format, ignoring")
			continue
		}
		uniqueTags[tc+Delimiter+tv] = true
	}
	tagList := make([]string, 0, len(uniqueTags))
	for t := range uniqueTags {
		tagList = append(tagList, t)
	}
	sort.Strings(tagList)
	return tagList
}

func removeSpaces(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}
