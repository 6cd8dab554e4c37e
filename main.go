package main

import "github.com/kozaktomas/speaker-labeler/cmd"

func main() {
	cmd.Execute()
}
