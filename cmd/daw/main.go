package main

import "github.com/soliddaw/daw/cmd"

func main() {
	cmd.Execute()
}
