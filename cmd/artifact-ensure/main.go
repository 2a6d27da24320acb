package main

import "github.com/oshokin/artifact-keeper/cmd/artifact-ensure/cmd"

func main() {
	cmd.Execute()
}
