package config

import (
	"fmt"

	"github.com/lucasnoah/skyflag/internal/rules"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedDrivers = map[string]bool{
	"sqlite": true,
	"pgx":    true,
}

var recognizedLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var recognizedFormats = map[string]bool{
	"console": true,
	"json":    true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	f := cfg.Flagging

	if len(f.Stages) == 0 {
		errs = append(errs, ValidationError{Field: "flagging.stages", Message: "at least one stage is required"})
	}
	if !recognizedLevels[f.Log.Level] {
		errs = append(errs, ValidationError{Field: "flagging.log.level", Message: fmt.Sprintf("unrecognized level %q", f.Log.Level)})
	}
	if !recognizedFormats[f.Log.Format] {
		errs = append(errs, ValidationError{Field: "flagging.log.format", Message: fmt.Sprintf("unrecognized format %q", f.Log.Format)})
	}
	if !recognizedDrivers[f.Store.Driver] {
		errs = append(errs, ValidationError{Field: "flagging.store.driver", Message: fmt.Sprintf("unrecognized driver %q", f.Store.Driver)})
	} else if f.Store.DSN == "" {
		errs = append(errs, ValidationError{Field: "flagging.store.dsn", Message: "is required for driver " + f.Store.Driver})
	}

	ids := make(map[string]bool)
	for i, s := range f.Stages {
		prefix := fmt.Sprintf("flagging.stages[%d]", i)

		switch {
		case s.ID == "":
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: "is required"})
		case ids[s.ID]:
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate stage ID %q", s.ID)})
		}
		ids[s.ID] = true

		if s.Artifact == "" {
			errs = append(errs, ValidationError{Field: prefix + ".artifact", Message: "is required"})
		}
		if s.NIter < 1 {
			errs = append(errs, ValidationError{Field: prefix + ".niter", Message: "must be at least 1"})
		}
		validateRules(s, prefix, &errs)
	}

	return errs
}

// validateRules checks the stage shape and that every rule exists for it
// with the parameters it needs.
func validateRules(s Stage, prefix string, errs *[]ValidationError) {
	if s.Shape != rules.Matrix && s.Shape != rules.Vector {
		*errs = append(*errs, ValidationError{
			Field:   prefix + ".shape",
			Message: fmt.Sprintf("must be %q or %q, got %q", rules.Matrix, rules.Vector, s.Shape),
		})
		return
	}
	if len(s.Rules) == 0 {
		*errs = append(*errs, ValidationError{Field: prefix + ".rules", Message: "at least one rule is required"})
		return
	}
	for j, spec := range s.Rules {
		field := fmt.Sprintf("%s.rules[%d]", prefix, j)
		if !rules.Known(s.Shape, spec.Name) {
			msg := fmt.Sprintf("unknown %s rule %q", s.Shape, spec.Name)
			if hint := rules.Suggest(s.Shape, spec.Name); hint != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", hint)
			}
			*errs = append(*errs, ValidationError{Field: field, Message: msg})
			continue
		}
		if err := rules.Check(s.Shape, spec); err != nil {
			*errs = append(*errs, ValidationError{Field: field, Message: err.Error()})
		}
	}
}
