package main

import (
	"github.com/agentpkg/snapcheck/pkg/cmd"
)

func main() {
	cmd.Execute()
}
