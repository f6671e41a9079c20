package main

import "github.com/valpere/booktran/cmd"

func main() {
	cmd.Execute()
}
