package main

import "github.com/quantfold/polyarb/cmd"

func main() {
	cmd.Execute()
}
