package main

import (
	"os"

	"github.com/graftwork/graft/pkg/stub"
)

func main() {
	os.Exit(stub.Run(os.Stderr))
}
