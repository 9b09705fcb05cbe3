package main

import "github.com/derickschaefer/timedeck/cmd"

func main() {
	cmd.Execute()
}
