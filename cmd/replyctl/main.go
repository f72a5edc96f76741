package main

import "github.com/replyflow/core/internal/cli"

func main() {
	cli.Execute()
}
