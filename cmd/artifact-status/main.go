package main

import "github.com/oshokin/artifact-keeper/cmd/artifact-status/cmd"

func main() {
	cmd.Execute()
}
