// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package nagios

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/sink"
	"github.com/rs/zerolog"
)

const sourceType = "Nagios"

var (
	externalCommandRx = regexp.MustCompile(`^\[(\d+)\] EXTERNAL COMMAND: (\w+);(.*)$`)
	logLineRx         = regexp.MustCompile(`^\[(\d+)\](?: \[\d+\])? ([^:]+): (.*)$`)
)

// eventFields lists the ';' separated fields of each event type, in order.
// A nil entry marks a known type that is ignored.
var eventFields = map[string][]string{
	"CURRENT HOST STATE":           {"host", "event_state", "event_soft_hard", "return_code", "payload"},
	"CURRENT SERVICE STATE":        {"host", "check_name", "event_state", "event_soft_hard", "return_code", "payload"},
	"SERVICE ALERT":                {"host", "check_name", "event_state", "event_soft_hard", "return_code", "payload"},
	"PASSIVE SERVICE CHECK":        {"host", "check_name", "return_code", "payload"},
	"HOST ALERT":                   {"host", "event_state", "event_soft_hard", "return_code", "payload"},
	"SERVICE NOTIFICATION":         {"contact", "host", "check_name", "event_state", "notification_type", "payload"},
	"SERVICE FLAPPING ALERT":       {"host", "check_name", "flap_start_stop", "payload"},
	"ACKNOWLEDGE_SVC_PROBLEM":      {"host", "check_name", "sticky_ack", "notify_ack", "persistent_ack", "ack_author", "payload"},
	"ACKNOWLEDGE_HOST_PROBLEM":     {"host", "sticky_ack", "notify_ack", "persistent_ack", "ack_author", "payload"},
	"PROCESS_SERVICE_CHECK_RESULT": nil, // logged again as PASSIVE SERVICE CHECK
	"HOST DOWNTIME ALERT":          {"host", "downtime_start_stop", "payload"},
	"SERVICE DOWNTIME ALERT":       {"host", "check_name", "downtime_start_stop", "payload"},
}

// eventText is the json body of an event
type eventText struct {
	EventType     string `json:"event_type"`
	EventSoftHard string `json:"event_soft_hard,omitempty"`
	CheckName     string `json:"check_name,omitempty"`
	EventState    string `json:"event_state,omitempty"`
	Payload       string `json:"payload,omitempty"`
	AckAuthor     string `json:"ack_author,omitempty"`
}

// eventParser turns nagios.log lines into events.
type eventParser struct {
	hostname string
	passive  bool
	tags     []string
	emit     func(sink.Event)
	logger   zerolog.Logger
}

func (p *eventParser) parse(line string) bool {
	m := externalCommandRx.FindStringSubmatch(line)
	if m == nil {
		m = logLineRx.FindStringSubmatch(line)
	}
	if m == nil {
		return false
	}

	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return false
	}
	eventType, remainder := m[2], m[3]

	if eventType == "PASSIVE SERVICE CHECK" && !p.passive {
		return false
	}

	fields, known := eventFields[eventType]
	if !known {
		p.logger.Warn().Str("line", line).Msg("ignoring unknown nagios event")
		return false
	}
	if fields == nil {
		return false
	}

	parts := strings.Split(remainder, ";")
	values := make(map[string]string, len(fields))
	for i, name := range fields {
		if i < len(parts) {
			values[name] = strings.TrimSpace(parts[i])
		}
	}

	body, err := json.Marshal(eventText{
		EventType:     eventType,
		EventSoftHard: values["event_soft_hard"],
		CheckName:     values["check_name"],
		EventState:    values["event_state"],
		Payload:       values["payload"],
		AckAuthor:     values["ack_author"],
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("line", line).Msg("encoding event")
		return false
	}

	host := values["host"]
	if host == "localhost" || host == "" {
		host = p.hostname
	}

	p.emit(sink.Event{
		Title:      eventType,
		Text:       string(body),
		AlertType:  alertType(values["event_state"]),
		Tags:       p.tags,
		SourceType: sourceType,
		Hostname:   host,
		Timestamp:  time.Unix(ts, 0),
	})

	return true
}

func alertType(state string) sink.AlertType {
	switch strings.ToUpper(state) {
	case "CRITICAL", "DOWN", "UNREACHABLE":
		return sink.AlertError
	case "WARNING":
		return sink.AlertWarning
	case "OK", "UP":
		return sink.AlertSuccess
	}
	return sink.AlertInfo
}
