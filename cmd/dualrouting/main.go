package main

import "github.com/freshie/bedrock-cross-partition-inferencing/internal/cli"

func main() {
	cli.Execute()
}
