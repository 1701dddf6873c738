// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/invowk/buildorch/cmd/buildorch"

func main() {
	cmd.Execute()
}
