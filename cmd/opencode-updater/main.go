package main

import "github.com/oshokin/opencode-updater/cmd/opencode-updater/cmd"

func main() {
	cmd.Execute()
}
