package main

import "github.com/oshokin/artifact-keeper/cmd/firmware-fetch/cmd"

func main() {
	cmd.Execute()
}
