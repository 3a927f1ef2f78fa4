// Command couchmongo-gateway runs a CouchDB-compatible HTTP gateway
// backed by MongoDB.
package main

import (
	"fmt"
	"os"

	"github.com/couchmongo/gateway/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
