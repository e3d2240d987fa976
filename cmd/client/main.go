package main

import "devicesync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
