package types

// SecretString holds a sensitive value (API key, DSN) and redacts itself in
// logs and JSON output. Call Reveal only at the point of use.
type SecretString string

// String implements fmt.Stringer with a redacted value.
func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalJSON never serializes the underlying value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// Reveal returns the underlying secret value.
func (s SecretString) Reveal() string {
	return string(s)
}
