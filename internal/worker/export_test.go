package worker

var (
	Settle       = settle
	Attributes   = attributes
	ExtractTrace = extractTrace
)
