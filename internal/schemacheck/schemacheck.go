// Package schemacheck verifies that a file holds a well-formed JSON Schema.
package schemacheck

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidMessage is printed when a schema compiles cleanly.
const ValidMessage = "Schema is valid."

// CheckFile compiles the schema at path against its metaschema. The draft is
// taken from "$schema" and defaults to 2020-12.
func CheckFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return Check(abs, data)
}

// Check compiles schema registered under url, which may also be a plain
// file path.
func Check(url string, schema []byte) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("schema is invalid: %w", err)
	}
	if _, err := c.Compile(url); err != nil {
		return fmt.Errorf("schema is invalid: %w", err)
	}
	return nil
}
