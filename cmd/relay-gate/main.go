package main

import "github.com/Relay-Gate/Relaygate/cmd/relay-gate/cmd"

func main() {
	cmd.Execute()
}
