package main

import "github.com/xkilldash9x/opslens-cli/cmd"

func main() {
	cmd.Execute()
}
