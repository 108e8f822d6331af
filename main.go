package main

import "github.com/trackload/trackload/cmd"

func main() {
	cmd.Execute()
}
