package main

import "libraryhub/cmd/notify-cli/command"

func main() {
	command.Execute()
}
