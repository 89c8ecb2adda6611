// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package cmd

import (
	"testing"

	"github.com/circonus-labs/circonus-checks/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func TestInitConfig(t *testing.T) {
	t.Log("Testing initConfig")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	initConfig()
}

func TestInitLogging(t *testing.T) {
	t.Log("Testing initLogging")
	zerolog.SetGlobalLevel(zerolog.Disabled)

	logLevels := []string{
		"panic",
		"fatal",
		"error",
		"warn",
		"info",
		"debug",
		"disabled",
	}

	for _, level := range logLevels {
		t.Logf("level %s", level)
		viper.Set(config.KeyLogLevel, level)
		err := initLogging(nil, []string{})
		if err != nil {
			t.Fatalf("expected no error, got %s", err)
		}
		viper.Reset()
	}

	t.Log("level invalid")
	{
		viper.Set(config.KeyLogLevel, "invalid")
		expect := "Unknown log level (invalid)"
		err := initLogging(nil, []string{})
		if err == nil {
			t.Fatal("expected error")
		}
		if err.Error() != expect {
			t.Fatalf("expected (%s) got (%s)", expect, err)
		}
		viper.Reset()
	}

	t.Log("debug flag")
	{
		viper.Set(config.KeyDebug, true)
		err := initLogging(nil, []string{})
		if err != nil {
			t.Fatalf("expected no error, got %s", err)
		}
		viper.Reset()
	}

	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func TestCommands(t *testing.T) {
	t.Log("Testing command tree")

	tt := []struct {
		path []string
		flag string
	}{
		{[]string{"checks", "run"}, "id"},
		{[]string{"checks", "list"}, ""},
		{[]string{"checks", "status"}, "agent-url"},
		{[]string{"wheels", "upload"}, "targets-dir"},
		{[]string{"wheels", "lock"}, "output-dir"},
	}

	for _, tst := range tt {
		t.Logf("\t%v", tst.path)
		c, _, err := RootCmd.Find(tst.path)
		if err != nil {
			t.Fatalf("expected no error, got (%s)", err)
		}
		if c.Name() != tst.path[len(tst.path)-1] {
			t.Fatalf("expected %s, got %s", tst.path[len(tst.path)-1], c.Name())
		}
		if tst.flag != "" && c.Flag(tst.flag) == nil {
			t.Fatalf("expected flag %s", tst.flag)
		}
	}
}
