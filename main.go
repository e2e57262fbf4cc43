package main

import "github.com/chadmayfield/sensord/cmd"

func main() {
	cmd.Execute()
}
