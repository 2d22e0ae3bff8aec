package main

import "github.com/jsvoboda/classwatch/cmd"

func main() {
	cmd.Execute()
}
