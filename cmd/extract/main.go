/**
 * One-shot PDF extraction
 *
 * Runs the extraction stage over a local file and prints the routed records.
 *
 *   extract -properties properties.yaml report.pdf
 *   extract -set Operation=RegionText -set "TITLE=0,0,612,80" report.pdf
 */

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/adverant/nexus/pdfextract-worker/internal/config"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
	"github.com/adverant/nexus/pdfextract-worker/internal/stage"
)

// setFlags collects repeated -set name=value properties in order.
type setFlags []flow.Property

func (s *setFlags) String() string {
	parts := make([]string, len(*s))
	for i, p := range *s {
		parts[i] = p.Name + "=" + p.Value
	}
	return strings.Join(parts, ",")
}

func (s *setFlags) Set(v string) error {
	name, value, ok := strings.Cut(v, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", v)
	}
	*s = append(*s, flow.Property{Name: name, Value: value})
	return nil
}

// printed is the JSON shape written for each routed record.
type printed struct {
	Relationship flow.Relationship `json:"relationship"`
	ID           string            `json:"id"`
	ParentID     string            `json:"parentId,omitempty"`
	Attributes   map[string]string `json:"attributes"`
	Text         string            `json:"text,omitempty"`
	Bytes        int               `json:"bytes"`
}

func main() {
	var sets setFlags
	propsFile := flag.String("properties", "", "YAML file with stage properties")
	contentType := flag.String("content-type", stage.PDFContentType, "content-type attribute of the input record")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Var(&sets, "set", "stage property name=value (repeatable, applied after -properties)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.pdf\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}
	logging.SetLevel(*logLevel)

	var props []flow.Property
	if *propsFile != "" {
		loaded, err := config.LoadProperties(*propsFile)
		if err != nil {
			log.Fatalf("Failed to load properties: %v", err)
		}
		props = loaded
	}
	props = mergeProperties(props, sets)

	content, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}

	input := &flow.Record{
		ID: filepath.Base(flag.Arg(0)),
		Attributes: map[string]string{
			flow.AttrContentType: *contentType,
		},
		Content: content,
	}

	session := flow.NewSession(input)
	outcome := stage.New(props, logging.NewLogger("stage")).Process(session)

	sink := flow.NewMemorySink()
	if err := session.Commit(context.Background(), sink); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, rel := range []flow.Relationship{flow.RelSuccess, flow.RelFailure} {
		for _, rec := range sink.Records(rel) {
			p := printed{
				Relationship: rel,
				ID:           rec.ID,
				ParentID:     rec.ParentID,
				Attributes:   rec.Attributes,
				Bytes:        len(rec.Content),
			}
			if rel == flow.RelSuccess {
				p.Text = string(rec.Content)
			}
			if err := enc.Encode(p); err != nil {
				log.Fatalf("Failed to write output: %v", err)
			}
		}
	}

	if outcome.Err != nil {
		fmt.Fprintf(os.Stderr, "extraction failed: %v\n", outcome.Err)
		os.Exit(1)
	}
}

// mergeProperties overrides base with overrides by name, appending new names
// in the order given.
func mergeProperties(base, overrides []flow.Property) []flow.Property {
	out := append([]flow.Property(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Name == o.Name {
				out[i].Value = o.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}
