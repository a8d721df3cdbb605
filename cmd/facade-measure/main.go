package main

import "github.com/menta2k/facade-measure/cmd/facade-measure/cmd"

func main() {
	cmd.Execute()
}
