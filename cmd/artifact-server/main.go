package main

import "github.com/oshokin/artifact-keeper/cmd/artifact-server/cmd"

func main() {
	cmd.Execute()
}
