package main

import "github.com/oshokin/cpx-bridge/cmd/cpx-bridge/cmd"

func main() {
	cmd.Execute()
}
