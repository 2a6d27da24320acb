package main

import "github.com/oshokin/artifact-keeper/cmd/artifact-packager/cmd"

func main() {
	cmd.Execute()
}
