package logger

import "context"

type contextKey struct{}

// Fields are attached to a context and added to every record logged with it.
type Fields struct {
	Component  string
	ScanID     string
	ActivityID string
	IdentityID string
}

// WithFields merges fields into ctx. Non-empty values in f win over existing ones.
func WithFields(ctx context.Context, f Fields) context.Context {
	merged := FieldsFrom(ctx)
	if f.Component != "" {
		merged.Component = f.Component
	}
	if f.ScanID != "" {
		merged.ScanID = f.ScanID
	}
	if f.ActivityID != "" {
		merged.ActivityID = f.ActivityID
	}
	if f.IdentityID != "" {
		merged.IdentityID = f.IdentityID
	}
	return context.WithValue(ctx, contextKey{}, merged)
}

// FieldsFrom returns the fields stored in ctx, or the zero value.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(contextKey{}).(Fields)
	return f
}
