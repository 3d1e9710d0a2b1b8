// Command dbrecord-gen generates an entity type for a MySQL table.
//
//	dbrecord-gen -config dbrecord.json -table tests.dbrecord_test -out models -keys "field2,field3" -keys name
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zzguang83325/dbrecord"
)

type keyList []string

func (k *keyList) String() string { return strings.Join(*k, ";") }

func (k *keyList) Set(v string) error {
	*k = append(*k, v)
	return nil
}

func main() {
	var (
		configPath = flag.String("config", "", "configuration file (default: $DBRECORD_CONFIG, dbrecord.json)")
		table      = flag.String("table", "", "table name, optionally schema qualified")
		out        = flag.String("out", "", "output directory or .go file (default: models/)")
		structName = flag.String("struct", "", "struct name (default: derived from the table name)")
		debug      = flag.Bool("debug", false, "log every statement")
		keys       keyList
	)
	flag.Var(&keys, "keys", "secondary key as a comma-joined column list; may be repeated")
	flag.Parse()

	if *table == "" {
		flag.Usage()
		os.Exit(2)
	}

	var cfg *dbrecord.Config
	if *configPath != "" {
		c, err := dbrecord.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dbrecord-gen: %v\n", err)
			os.Exit(1)
		}
		cfg = c
	} else {
		cfg = dbrecord.LoadConfigOrDefault()
	}

	dbrecord.SetDebugMode(*debug)
	dbrecord.MasterConfig(cfg)
	defer dbrecord.MasterDbhDestroy()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := dbrecord.GenerateEntity(ctx, *table, *out, *structName, keys...); err != nil {
		fmt.Fprintf(os.Stderr, "dbrecord-gen: %v\n", err)
		os.Exit(1)
	}
}
