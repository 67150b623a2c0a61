package main

import "github.com/yarlson/ralph-gates/cmd"

func main() {
	cmd.Execute()
}
