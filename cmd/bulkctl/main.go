//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2025 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/weaviate/bulkshard/adapters/clients"
	"github.com/weaviate/bulkshard/adapters/handlers/rest/bulkapi"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bulkctl",
		Usage: "check and send newline delimited bulk requests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "index",
				Usage: "default index of lines that do not name one",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "default type of lines that do not name one",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "parse a bulk file and report the first malformed line",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "allow-explicit-index",
						Value: true,
						Usage: "accept _index on action lines",
					},
				},
				Action: validate,
			},
			{
				Name:      "send",
				Usage:     "post a bulk file to a node and print the failed items",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "url",
						Value:   "http://localhost:9200",
						Usage:   "base url of the bulk API",
						EnvVars: []string{"BULKSHARD_URL"},
					},
					&cli.BoolFlag{Name: "refresh", Usage: "refresh the written shards"},
					&cli.StringFlag{Name: "consistency", Usage: "one, quorum or all"},
					&cli.StringFlag{Name: "timeout", Usage: "batch timeout, e.g. 30s"},
					&cli.DurationFlag{Name: "http-timeout", Value: 2 * time.Minute},
				},
				Action: send,
			},
		},
	}
}

func readFile(c *cli.Context) ([]byte, error) {
	if c.NArg() != 1 {
		return nil, cli.Exit("expected exactly one file argument", 2)
	}
	return os.ReadFile(c.Args().First())
}

func validate(c *cli.Context) error {
	body, err := readFile(c)
	if err != nil {
		return err
	}
	ops, err := bulkapi.Parse(body, bulkapi.Defaults{
		Index:              c.String("index"),
		Type:               c.String("type"),
		AllowExplicitIndex: c.Bool("allow-explicit-index"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	counts := map[string]int{}
	for _, op := range ops {
		counts[string(op.OpType())]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(c.App.Writer, "%d operations\n", len(ops))
	for _, name := range names {
		fmt.Fprintf(c.App.Writer, "  %-7s %d\n", name, counts[name])
	}
	return nil
}

func send(c *cli.Context) error {
	body, err := readFile(c)
	if err != nil {
		return err
	}

	params := url.Values{}
	if c.Bool("refresh") {
		params.Set("refresh", "true")
	}
	if v := c.String("consistency"); v != "" {
		params.Set("consistency", v)
	}
	if v := c.String("timeout"); v != "" {
		params.Set("timeout", v)
	}

	client := clients.NewBulkClient(&http.Client{Timeout: c.Duration("http-timeout")}, c.String("url"))
	resp, err := client.Send(c.Context, c.String("index"), c.String("type"), params, body)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	failed := 0
	for pos, item := range resp.Items {
		for opType, res := range item {
			if res["error"] == nil {
				continue
			}
			failed++
			fmt.Fprintf(c.App.Writer, "item [%d] %s [%v][%v][%v]: status %v: %v\n",
				pos, opType, res["_index"], res["_type"], res["_id"], res["status"], res["error"])
		}
	}
	fmt.Fprintf(c.App.Writer, "%d items in %dms, %d failed\n", len(resp.Items), resp.Took, failed)
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}
