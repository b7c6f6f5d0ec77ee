package main

import "github.com/gaurav-prasanna/confchunk/cmd"

func main() {
	cmd.Execute()
}
