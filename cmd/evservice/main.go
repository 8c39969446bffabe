package main

import "github.com/dmitrymomot/evservice/cmd/evservice/cmd"

func main() {
	cmd.Execute()
}
