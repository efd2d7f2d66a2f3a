package configval

// Tables holds the immutable heuristic data the checks consult. A copy is
// taken at engine construction; nothing mutates these at runtime.
type Tables struct {
	// SecretKeyTerms are key-name fragments that mark a value as a likely
	// credential.
	SecretKeyTerms []string

	// DeprecatedTerms maps legacy terminology fragments to their suggested
	// replacement.
	DeprecatedTerms map[string]string

	// ConflictPairs lists mutually exclusive path pairs: both present and
	// enabled is an error.
	ConflictPairs []ConflictPair

	// RequiredPaths are commonly required configuration paths; absence is
	// an error.
	RequiredPaths []string

	// RecommendedPaths are commonly expected paths; absence is a warning.
	RecommendedPaths []string
}

// ConflictPair names two paths that must not both be enabled.
type ConflictPair struct {
	A, B   string
	Reason string
}

// DefaultTables returns the built-in heuristic tables.
func DefaultTables() Tables {
	return Tables{
		SecretKeyTerms: []string{
			"password", "secret", "apikey", "api_key", "token", "credential", "private",
		},
		DeprecatedTerms: map[string]string{
			"whitelist": "allowlist",
			"blacklist": "blocklist",
			"master":    "primary",
			"slave":     "replica",
		},
		ConflictPairs: []ConflictPair{
			{A: "server.http.enabled", B: "server.httpsOnly", Reason: "plain HTTP and HTTPS-only cannot both be enabled"},
			{A: "cache.enabled", B: "cache.disabled", Reason: "cache toggled on and off simultaneously"},
			{A: "logging.silent", B: "logging.verbose", Reason: "silent and verbose logging are mutually exclusive"},
			{A: "features.experimental", B: "features.stableOnly", Reason: "experimental features conflict with stable-only mode"},
		},
		RequiredPaths: []string{
			"database.host",
		},
		RecommendedPaths: []string{
			"database.port",
			"logging.level",
		},
	}
}
