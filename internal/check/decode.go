// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package check

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Common holds the options every instance accepts.
type Common struct {
	Name       string        `json:"name"`
	Timeout    time.Duration `json:"timeout"`
	Tags       []string      `json:"tags"`
	Hostname   string        `json:"hostname"`
	Persistent bool          `json:"persist_connections"`
}

var keyRx = regexp.MustCompile(`'([^']*)'`)

// Decode copies raw into the struct pointed to by target, matching keys to
// `json` tags. Durations accept Go duration strings or a number of
// seconds. Failures are returned as *config.InvalidError naming the first
// offending key.
func Decode(raw map[string]interface{}, target interface{}) error {
	dc := &mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: target,
	}

	dec, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return errors.Wrap(err, "creating options decoder")
	}

	if err := dec.Decode(raw); err != nil {
		key := "instance"
		var merr *mapstructure.Error
		if errors.As(err, &merr) && len(merr.Errors) > 0 {
			if m := keyRx.FindStringSubmatch(merr.Errors[0]); m != nil && m[1] != "" {
				key = m[1]
			}
			return &config.InvalidError{Key: key, Reason: merr.Errors[0]}
		}
		return &config.InvalidError{Key: key, Err: err}
	}

	return nil
}

func durationHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Duration(0), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return data, nil
}

// Required returns a configuration error for key when value is empty.
func Required(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return config.Invalid(key, "required")
	}
	return nil
}
