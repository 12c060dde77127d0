package main

import "github.com/chrismeller/mj/cmd"

func main() {
	cmd.Execute()
}
