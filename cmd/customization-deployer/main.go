package main

import "github.com/oshokin/customization-deployer/cmd/customization-deployer/cmd"

func main() {
	cmd.Execute()
}
