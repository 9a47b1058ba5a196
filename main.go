// SPDX-License-Identifier: MPL-2.0

// kogine loads shell scripts as executable units, injects configuration
// into their top level, and invokes the entrypoint each script designates.
package main

import cmd "kogine/cmd/kogine"

func main() {
	cmd.Execute()
}
