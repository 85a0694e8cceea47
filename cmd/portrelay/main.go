package main

import "github.com/julienstroheker/portrelay/server/cmd"

func main() {
	cmd.Execute()
}
