// Command schema emits the JSON schema for the service configuration. The
// output is committed as pkg/config/schema.json and embedded there, so loaded
// configs can be checked against it at startup; regenerate after changing any
// config struct (see the go:generate directive in pkg/config).
package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"newsmux/pkg/config"
)

func main() {
	out := "schema.json"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	data, err := json.MarshalIndent(jsonschema.Reflect(&config.Config{}), "", "  ")
	if err != nil {
		log.Fatalf("[ERROR] can't marshal config schema: %v", err)
	}

	if err := os.WriteFile(out, data, 0o600); err != nil {
		log.Fatalf("[ERROR] can't write %s: %v", out, err)
	}
	log.Printf("[INFO] config schema written to %s", out)
}
