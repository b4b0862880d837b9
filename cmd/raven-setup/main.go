package main

import "github.com/raven-assist/raven-setup/cmd/raven-setup/cmd"

func main() {
	cmd.Execute()
}
