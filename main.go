package main

import "codetrail/cmd"

func main() {
	cmd.Execute()
}
