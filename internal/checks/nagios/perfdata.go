// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package nagios

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const metricPrefix = "nagios"

// perfdataRx matches one 'label'=value[UOM];[warn];[crit];[min];[max] item
var perfdataRx = regexp.MustCompile(`^'?(?P<label>[^=']+)'?=` +
	`(?P<value>[-0-9.]+)` +
	`(?P<unit>s|us|ms|%|B|KB|MB|GB|TB|c)?` +
	`(;(?P<warn>@?[-0-9.~]*:?[-0-9.~]*))?` +
	`(;(?P<crit>@?[-0-9.~]*:?[-0-9.~]*))?` +
	`(;(?P<min>[-0-9.]*))?` +
	`(;(?P<max>[-0-9.]*))?`)

// perfItem is one parsed perfdata item.
type perfItem struct {
	label string
	value float64
	tags  []string // unit, warn, crit, min, max when present
}

// parsePerfdata splits a space separated perfdata string. Items that do not
// parse are skipped.
func parsePerfdata(perfdata string) []perfItem {
	items := []perfItem{}
	for _, pair := range strings.Fields(perfdata) {
		m := perfdataRx.FindStringSubmatch(pair)
		if m == nil {
			continue
		}
		item := perfItem{tags: []string{}}
		for i, name := range perfdataRx.SubexpNames() {
			switch name {
			case "label":
				item.label = m[i]
			case "value":
				v, err := strconv.ParseFloat(m[i], 64)
				if err != nil {
					item.label = ""
					break
				}
				item.value = v
			case "unit", "warn", "crit", "min", "max":
				if m[i] != "" {
					item.tags = append(item.tags, name+":"+m[i])
				}
			}
		}
		if item.label == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

// compileTemplate turns a nagios perfdata file template into a line
// matcher, every $MACRO$ becoming a named group.
func compileTemplate(tmpl string) (*regexp.Regexp, error) {
	tmpl = strings.NewReplacer(`\t`, "\t", `\n`, "\n").Replace(tmpl)
	macroRx := regexp.MustCompile(`\$([^$]*)\$`)
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range macroRx.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(escapeLiteral(tmpl[last:loc[0]]))
		b.WriteString("(?P<" + tmpl[loc[2]:loc[3]] + `>[^$]*)`)
		last = loc[1]
	}
	b.WriteString(escapeLiteral(tmpl[last:]))

	rx, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.Wrapf(err, "invalid perfdata template (%s)", tmpl)
	}
	return rx, nil
}

// escapeLiteral quotes template text. '[', ']' and '*' match any character.
func escapeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '[', ']', '*':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// perfdataParser turns host or service perfdata file lines into gauges.
type perfdataParser struct {
	line     *regexp.Regexp
	field    string // HOSTPERFDATA or SERVICEPERFDATA
	service  bool
	hostname string
	tags     []string
	emit     func(sink.Metric)
	logger   zerolog.Logger
}

func (p *perfdataParser) prefix(data map[string]string) []string {
	if !p.service {
		return []string{metricPrefix, "host"}
	}
	prefix := []string{metricPrefix}
	if desc := data["SERVICEDESC"]; desc != "" {
		prefix = append(prefix, strings.ToLower(strings.ReplaceAll(desc, " ", "_")))
	}
	return prefix
}

func (p *perfdataParser) parse(line string) bool {
	m := p.line.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	data := map[string]string{}
	for i, name := range p.line.SubexpNames() {
		if name != "" {
			data[name] = m[i]
		}
	}

	perfdata := data[p.field]
	if perfdata == "" {
		p.logger.Warn().Str("field", p.field).Str("line", line).Msg("field not found, check the perfdata template")
		return false
	}

	host := p.hostname
	if h, ok := data["HOSTNAME"]; ok && h != "" {
		host = h
	}

	prefix := p.prefix(data)
	for _, item := range parsePerfdata(perfdata) {
		name := strings.Join(append(append([]string(nil), prefix...), item.label), ".")
		tl := append(append([]string(nil), item.tags...), p.tags...)
		if strings.Contains(item.label, "/") {
			// the label is a device, the prefix alone names the metric
			name = strings.Join(prefix, ".")
			tl = append(tl, "device:"+item.label)
		}
		p.emit(sink.Metric{Name: name, Type: sink.Gauge, Value: item.value, Tags: tl, Hostname: host})
	}

	return true
}
