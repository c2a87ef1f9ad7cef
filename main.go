package main

import (
	"github.com/RoModerate/romoderate/internal/cmd"
)

func main() {
	cmd.Execute()
}
