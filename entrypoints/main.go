package main

import (
	"github.com/file-vault/file-vault/cmd"
)

func main() {
	cmd.Execute()
}
