package main

import "github.com/dobrakmato/asset-server/cmd"

func main() {
	cmd.Execute()
}
