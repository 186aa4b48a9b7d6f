// The main package for the agrishikyo executable.
package main

import (
	"github.com/JakeFAU/agrishikyo-relay/cmd"
)

func main() {
	cmd.Execute()
}
