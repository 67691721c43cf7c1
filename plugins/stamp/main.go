// Command stamp is an example external deployment handler. Build it for
// wasip1 and drop the module into the plugin directory:
//
//	GOOS=wasip1 GOARCH=wasm go build -o stamp.wasm .
//
// A step declaring `stamp: <text>` writes a stamp file into the payload
// directory recording the text, the payload name and the environment.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// input mirrors the JSON document the host feeds on stdin.
type input struct {
	Payload struct {
		Name        string `json:"name"`
		Directory   string `json:"directory"`
		Environment string `json:"environment"`
	} `json:"payload"`
	Value any `json:"value"`
}

func main() {
	var in input
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		fmt.Fprintf(os.Stderr, "stamp: cannot decode input: %v\n", err)
		os.Exit(1)
	}

	text := ""
	if s, ok := in.Value.(string); ok {
		text = s
	}

	content := fmt.Sprintf("payload: %s\nenvironment: %s\nstamped: %s\ntext: %s\n",
		in.Payload.Name, in.Payload.Environment,
		time.Now().UTC().Format(time.RFC3339), text)

	path := filepath.Join(in.Payload.Directory, ".graft-stamp")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "stamp: cannot write %s: %v\n", path, err)
		os.Exit(1)
	}
}
