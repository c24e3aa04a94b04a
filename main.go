package main

import "github.com/icco/pocketseq/cmd"

func main() {
	cmd.Execute()
}
