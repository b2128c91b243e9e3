package main

import "github.com/esmcp/cmd"

func main() {
	cmd.Execute()
}
