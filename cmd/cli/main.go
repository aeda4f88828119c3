package main

import "roomchat/cmd/cli/command"

func main() {
	command.Execute()
}
