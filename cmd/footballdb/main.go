package main

import (
	"context"

	"github.com/fortuna/footballdb/cmd/footballdb/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
