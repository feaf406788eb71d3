package search

// EventType distinguishes the two notifications a provider raises per request.
type EventType int

const (
	// ResultsAvailable carries the matches produced for one request.
	ResultsAvailable EventType = iota
	// SearchFinished is the terminal event for one request.
	SearchFinished
)

func (t EventType) String() string {
	switch t {
	case ResultsAvailable:
		return "results_available"
	case SearchFinished:
		return "search_finished"
	default:
		return "unknown"
	}
}

// Result is one provider-specific match.
type Result struct {
	Provider string
	ID       string
	Title    string
	Subtitle string
	URL      string
	Score    int
	Metadata map[string]string
}

// Event is a tagged notification correlated to a request by ID.
type Event struct {
	Type     EventType
	ID       int
	Provider string
	Results  []Result
}

// Provider is a content source that answers searches asynchronously.
//
// For every SearchAsync(id, ...) call a provider eventually sends exactly one
// SearchFinished event for that id on Events(), optionally preceded by one
// ResultsAvailable event for the same id. Events for different ids may
// interleave in any order.
type Provider interface {
	Name() string
	Icon() string
	SearchAsync(id int, query string)
	Events() <-chan Event
}

// Base implements the identity and event plumbing shared by providers.
// Embed it and call EmitResults/EmitFinished from the completion path.
type Base struct {
	name   string
	icon   string
	events chan Event
}

// NewBase creates a Base whose event channel holds up to buffer events
// before emitters block.
func NewBase(name, icon string, buffer int) *Base {
	if buffer < 1 {
		buffer = 1
	}
	return &Base{
		name:   name,
		icon:   icon,
		events: make(chan Event, buffer),
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Icon() string { return b.icon }

func (b *Base) Events() <-chan Event { return b.events }

// EmitResults sends a ResultsAvailable event for id. Each result is stamped
// with the provider name.
func (b *Base) EmitResults(id int, results []Result) {
	for i := range results {
		results[i].Provider = b.name
	}
	b.events <- Event{Type: ResultsAvailable, ID: id, Provider: b.name, Results: results}
}

// EmitFinished sends the terminal SearchFinished event for id.
func (b *Base) EmitFinished(id int) {
	b.events <- Event{Type: SearchFinished, ID: id, Provider: b.name}
}
