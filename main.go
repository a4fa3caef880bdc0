package main

import "github.com/brensch/s2composite/cmd"

func main() {
	cmd.Execute()
}
