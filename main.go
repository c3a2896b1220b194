package main

import "github.com/omnidesk/omnibridge/cmd"

func main() {
	cmd.Execute()
}
