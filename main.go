// The main package for the recruitsync executable.
package main

import (
	"github.com/JakeFAU/recruiting-sheets/cmd"
)

func main() {
	cmd.Execute()
}
