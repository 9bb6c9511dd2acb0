// Command schema-generator writes the JSON schema of editsync.yml so editors
// can validate and complete config files.
//
//go:generate go run . -o ../../schema/editsync.schema.json
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/editsync/config"
)

func main() {
	output := flag.String("o", "schema/editsync.schema.json", "output path")
	flag.Parse()

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(*output, schemaBytes, 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Generated schema at %s", *output)
}
