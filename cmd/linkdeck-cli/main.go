package main

import "github.com/linkdeck/linkdeck/cmd/linkdeck-cli/cmd"

func main() {
	cmd.Execute()
}
