package models

// JSONValue is a generic type to represent any converted JSON value:
// nil, bool, int64, uint64, float64, string, []any or an ordered object.
type JSONValue interface{}

// Event is a single signal as delivered by the bus subscription.
// Body holds the positional arguments in the Go representation produced by
// github.com/godbus/dbus/v5.
type Event struct {
	Sender    string
	Path      string
	Interface string
	// Member is empty when the message carried no member name.
	Member string
	Body   []interface{}
	// Signature is the body signature from the message header, without the
	// enclosing parentheses. It is empty when the header carried none.
	Signature string
}

// Record is the per-signal envelope handed to the query engine.
type Record struct {
	Signal    string    `json:"signal"`
	Data      JSONValue `json:"data"`
	Signature JSONValue `json:"signature"`
}
