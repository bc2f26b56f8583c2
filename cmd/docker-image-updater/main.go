package main

import "github.com/oshokin/docker-image-updater/cmd/docker-image-updater/cmd"

func main() {
	cmd.Execute()
}
