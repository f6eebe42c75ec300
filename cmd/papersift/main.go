package main

import "github.com/vietddude/papersift/internal/cli"

func main() {
	cli.Execute()
}
