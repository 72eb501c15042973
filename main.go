// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/h5pkit/h5pkit/cmd/h5pkit"

func main() {
	cmd.Execute()
}
