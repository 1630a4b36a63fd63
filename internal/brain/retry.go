package brain

// GenerationRetry is the pure state machine coupling generation with the
// uniqueness check. The I/O (actual LLM calls) stays with the caller; this
// only tracks attempts, the last candidate, and the terms to steer away
// from on the next attempt.
type GenerationRetry struct {
	MaxRetries int     // extra attempts after the first
	Threshold  float64 // uniqueness threshold

	attempts   int
	last       string
	avoidTerms []string
	unique     bool
}

// NewGenerationRetry with the production policy: 2 extra attempts at the
// default threshold.
func NewGenerationRetry() *GenerationRetry {
	return &GenerationRetry{MaxRetries: 2, Threshold: DefaultUniquenessThreshold}
}

// AvoidTerms returns the overlap terms from the last rejected candidate,
// empty on the first attempt.
func (g *GenerationRetry) AvoidTerms() []string {
	return g.avoidTerms
}

// Attempts returns how many candidates have been offered.
func (g *GenerationRetry) Attempts() int {
	return g.attempts
}

// Offer feeds one generated candidate. It returns true when the candidate
// is accepted: either it is unique, or the retry budget is exhausted — a
// duplicate is better than silence, so the last candidate always wins.
func (g *GenerationRetry) Offer(candidate string, recent []string) bool {
	g.attempts++
	g.last = candidate

	res := CheckUniqueness(candidate, recent, g.Threshold)
	if res.IsUnique {
		g.unique = true
		return true
	}
	g.unique = false
	g.avoidTerms = res.OverlapTerms

	return g.attempts > g.MaxRetries
}

// Final returns the text to use and whether it passed the uniqueness
// check (as opposed to being accepted on exhaustion).
func (g *GenerationRetry) Final() (text string, wasUnique bool) {
	return g.last, g.unique
}
