package main

import "github.com/akademi-crypto/vidhub/cmd/vidhubd/cmd"

func main() {
	cmd.Execute()
}
