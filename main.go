package main

import "github.com/nextlevelbuilder/rodchain/cmd"

func main() {
	cmd.Execute()
}
