package config

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ErrInvalid marks a configuration rejected by the schema or a value that
// does not parse.
var ErrInvalid = errors.New("invalid config")

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schema     cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schema = v.LookupPath(cue.ParsePath("#Config"))
		if !schema.Exists() {
			schemaErr = fmt.Errorf("config schema has no #Config definition")
		}
	})
	return schemaCtx, schema, schemaErr
}

// Validate checks the configuration against the embedded schema.
func (c *Config) Validate() error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	// cue.Context is not safe for concurrent use.
	validateMu.Lock()
	defer validateMu.Unlock()

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

var validateMu sync.Mutex
