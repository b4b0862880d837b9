package main

import "github.com/raven-assist/raven-setup/cmd/raven-restore/cmd"

func main() {
	cmd.Execute()
}
