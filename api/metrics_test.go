// Copyright © 2018 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRun(t *testing.T) {
	t.Log("Testing Run")

	tests := []struct {
		name        string
		checkID     string
		path        string
		response    string
		expectedErr string
		shouldErr   bool
	}{
		{"invalid (check id)", "[invalid]", "", "", "[invalid]: invalid check ID", true},
		{"invalid (json/parse)", "", "/run", "invalid", "json parse - metrics: invalid character 'i' looking for beginning of value", true},
		{"valid", "", "/run", `{"foo":{"_type":"n", "_value":3.12}}`, "", false},
		{"valid (check id)", "mysql:primary", "/run/mysql:primary", `{"mysql.net.connections|ST[server:db]":{"_type":"n", "_value":1}}`, "", false},
	}

	for _, test := range tests {
		resp := test.response
		path := test.path
		t.Log("\t", test.name)
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(resp))
		}))

		c, err := New(ts.URL)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}

		m, err := c.Run(context.Background(), test.checkID)

		if test.shouldErr {
			if err == nil {
				t.Fatal("expected error")
			}
			if err.Error() != test.expectedErr {
				t.Fatalf("unexpected error (%s)", err)
			}
		} else {
			if err != nil {
				t.Fatalf("expected no error, got (%s)", err)
			}
			if len(*m) != 1 {
				t.Fatalf("expected 1 metric, got %v", *m)
			}
		}

		ts.Close()
	}
}
