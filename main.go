package main

import "github.com/nethalo/utf8mb4-convert/cmd"

func main() {
	cmd.Execute()
}
