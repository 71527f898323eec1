// rhubarb compiles and runs queries over the tables declared in a
// configuration file.
//
//	rhubarb sql Book --with author --config library.yaml
//	rhubarb query Author --with books --dsn postgres://localhost/library
package main

import (
	"context"
	"os"
	"os/signal"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/syssam/rhubarb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
