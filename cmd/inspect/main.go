// Command inspect runs the extraction pipeline against a local spreadsheet
// and prints what the server would persist: the normalized records, the
// uniform key set, and the inferred label/value field split. Useful for
// checking a file before uploading it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"painel/internal/tabular"
)

func main() {
	var (
		flagPath   = flag.String("file", "", "CSV or XLSX file to inspect")
		flagLimit  = flag.Int("n", 10, "number of records to print (0 = all)")
		flagFields = flag.Bool("fields", true, "print the inferred field classification")
	)
	flag.Parse()

	if *flagPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*flagPath)
	if err != nil {
		log.Fatalf("inspect: ler arquivo: %v", err)
	}

	table, err := tabular.Decode(data, filepath.Ext(*flagPath))
	if err != nil {
		log.Fatalf("inspect: decodificar: %v", err)
	}
	records, err := tabular.Normalize(table)
	if err != nil {
		log.Fatalf("inspect: normalizar: %v", err)
	}

	fmt.Printf("registros: %d\n", len(records))
	fmt.Printf("campos:    %v\n", records.Fields())

	if *flagFields {
		info := tabular.InferFields(records)
		fmt.Printf("rotulos:   %v\n", info.LabelFields)
		fmt.Printf("valores:\n")
		for _, vf := range info.ValueFields {
			fmt.Printf("  %-30s %s\n", vf.Key, vf.Label)
		}
	}

	limit := *flagLimit
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, rec := range records[:limit] {
		if err := enc.Encode(rec); err != nil {
			log.Fatalf("inspect: serializar registro: %v", err)
		}
	}
}
