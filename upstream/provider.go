package upstream

// Provider identifies the upstream wire shape a fragment was produced by.
// The detector and translator use it to pick structured field paths; it is
// carried on every fragment rather than configured globally so that a
// single consumer can serve mixed upstreams.
type Provider uint8

const (
	// Generic means the shape is unknown; all structured strategies are tried.
	Generic Provider = iota
	OpenAI
	Anthropic
	Gemini
)

var providerNames = map[Provider]string{
	Generic:   "generic",
	OpenAI:    "openai",
	Anthropic: "anthropic",
	Gemini:    "gemini",
}

func (p Provider) String() string {
	if name, ok := providerNames[p]; ok {
		return name
	}
	return "generic"
}

// ProviderFromString maps a provider tag to its enum value. Unrecognized
// tags fall back to Generic rather than failing: an unknown upstream still
// gets the textual detection strategies.
func ProviderFromString(s string) Provider {
	switch s {
	case "openai":
		return OpenAI
	case "anthropic":
		return Anthropic
	case "gemini":
		return Gemini
	default:
		return Generic
	}
}
