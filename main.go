package main

import "github.com/hubfold/tokend/cmd"

func main() {
	cmd.Execute()
}
