package journal

// ListOptions provides filtering options for listing journal entries.
type ListOptions struct {
	ActivityID string
	Outcome    *Outcome
	Source     *Source
	Limit      int
	Offset     int
}
