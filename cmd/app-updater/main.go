package main

import "github.com/oshokin/artifact-keeper/cmd/app-updater/cmd"

func main() {
	cmd.Execute()
}
