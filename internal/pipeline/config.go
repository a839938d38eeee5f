package pipeline

// Command names accepted by the pipeline binary.
const (
	CommandTransform = "transform"
	CommandNormalize = "normalize"
	CommandConvert   = "convert"
	CommandLocate    = "locate"
	CommandCollect   = "collect"
)

// Options holds one parsed pipeline invocation. Empty paths fall back to the
// table files named in the configuration.
type Options struct {
	Command string
	Input   string // input table or raw export
	Output  string // output table
	Workers int    // collect only; 0 keeps the configured worker count
	Verbose bool   // debug logging
}
