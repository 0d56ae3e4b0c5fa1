package main

import "github.com/relloyd/freshpipe/cmd"

func main() {
	cmd.Execute()
}
