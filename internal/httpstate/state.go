package httpstate

// MainState is the main parser state, walking a request from its
// request line through headers to an optional body.
type MainState int

const (
	StateRequestLine MainState = iota
	StateHeader
	StateBody
)

// LineStatus is parse_line's sub-state-machine result.
type LineStatus int

const (
	LineOK LineStatus = iota
	LineOpen
	LineBad
)

// Outcome is what ProcessRead (and, downstream, request fulfillment)
// concluded about a request. It enumerates exactly the HTTP_CODE
// values the original used, plus InternalError for the default case
// the original's switch statement fell into without actually returning
// one (see the ProcessRead doc comment for the fix).
type Outcome int

const (
	NoRequest Outcome = iota
	GetRequest
	BadRequest
	NoResource
	Forbidden
	FileRequest
	InternalError
)

// String names an Outcome for logging and metric labels.
func (o Outcome) String() string {
	switch o {
	case NoRequest:
		return "no_request"
	case GetRequest:
		return "get_request"
	case BadRequest:
		return "bad_request"
	case NoResource:
		return "no_resource"
	case Forbidden:
		return "forbidden"
	case FileRequest:
		return "file_request"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}
