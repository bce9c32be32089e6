// Package validation validates configuration and task hyper-parameters.
//
// Struct tag validation is backed by go-playground/validator and reports
// failures as *errors.AppError values carrying per-field details:
//
//	type ResizeParams struct {
//	    Width  int    `json:"width" validate:"required,gt=0"`
//	    Format string `json:"format" validate:"oneof=png jpeg"`
//	}
//	err := validation.Validate(params)
//
// The programmatic Validator collects errors for checks that do not map to
// tags, such as cross-field rules:
//
//	v := validation.New()
//	v.Required("meta_dir", cfg.MetaDir).TaskName("tasks[0]", name)
//	err := v.Validate()
package validation
