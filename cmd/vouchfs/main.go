package main

import "github.com/vouchfs/vouchfs/cmd/vouchfs/cmd"

func main() {
	cmd.Execute()
}
