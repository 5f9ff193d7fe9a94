package pricing

// Source records where an estimate's rates came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceLive, SourceCache, SourceFallback:
		return true
	}
	return false
}
