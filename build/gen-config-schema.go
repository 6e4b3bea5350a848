// Command gen-config-schema writes the JSON schema reflected from the
// configuration types. Run through go generate in ./config.
package main

import (
	"log"
	"os"

	"github.com/learningequality/bundlegen/internal/config"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s path/to/schema.json", os.Args[0])
	}
	bs, err := config.ReflectSchema()
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(os.Args[1], append(bs, '\n'), 0o644); err != nil {
		log.Fatal(err)
	}
}
