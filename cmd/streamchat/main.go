// Command streamchat is a terminal client for a streaming chat inference server.
package main

import "github.com/diogo/streamchat/internal/commands"

func main() {
	commands.Execute()
}
