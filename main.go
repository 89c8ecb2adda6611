// Copyright © 2017 Circonus, Inc. <support@circonus.com>
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"github.com/circonus-labs/circonus-checks/cmd"
)

func main() {
	cmd.Execute()
}
