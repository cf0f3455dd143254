package main

import "github.com/crystaldolphin/murmur/cmd"

func main() {
	cmd.Execute()
}
