// Package validate provides composable structural validators for untrusted
// payloads. Every response that arrives from a third-party service is passed
// through a Validator before any of its fields are read; a failed validation
// yields a *Error naming the offending field path instead of partially
// decoded data.
//
// Validators are built from primitives (String, Number, Boolean, Null, Enum)
// and combinators (Union, Nullable, Array, Obj). Object shapes declare each
// field as Required or Optional. Unknown fields are ignored and dropped from
// the validated content.
//
//	vUser := validate.Obj(validate.Shape{
//	    "login":      validate.Required(validate.String()),
//	    "name":       validate.Required(validate.Nullable(validate.String())),
//	    "avatar_url": validate.Required(validate.String()),
//	})
//
//	res := vUser.Validate(payload)
//	if !res.OK() {
//	    log.Error("invalid user payload", slog.String("err", res.Err.Error()))
//	    return fallback
//	}
//
// Into converts a validated record into a typed Go value using its json tags,
// and Parse decodes raw JSON before validating it.
//
// Validators are pure: they never mutate their input, never panic and are safe
// for concurrent use. Each validator can also describe itself as a JSON
// Schema document via JSONSchema, which is useful for documentation and for
// diagnosing contract drift with a remote service.
package validate
