package main

import "github.com/Sentinel-Gate/duovisor/cmd/duovisor/cmd"

func main() {
	cmd.Execute()
}
