package usage

import "strings"

// StopReason is the normalized completion cause reported to the metering
// backend.
type StopReason string

const (
	StopEnd         StopReason = "END"
	StopEndSequence StopReason = "END_SEQUENCE"
	StopTimeout     StopReason = "TIMEOUT"
	StopTokenLimit  StopReason = "TOKEN_LIMIT"
	StopError       StopReason = "ERROR"
)

var googleAIStopReasons = map[string]StopReason{
	"STOP":       StopEnd,
	"MAX_TOKENS": StopTokenLimit,
	"SAFETY":     StopError,
	"RECITATION": StopError,
	"OTHER":      StopEnd,
}

var vertexAIStopReasons = map[string]StopReason{
	"STOP":                      StopEnd,
	"MAX_TOKENS":                StopTokenLimit,
	"SAFETY":                    StopError,
	"RECITATION":                StopError,
	"FINISH_REASON_UNSPECIFIED": StopEnd,
}

// NormalizeStopReason maps a provider finish reason onto the metering
// vocabulary. Unrecognized and empty reasons normalize to END so a record
// can always be submitted.
func NormalizeStopReason(finishReason string, variant Variant) StopReason {
	table := googleAIStopReasons
	if variant == VariantVertexAI {
		table = vertexAIStopReasons
	}
	if stop, ok := table[strings.ToUpper(strings.TrimSpace(finishReason))]; ok {
		return stop
	}
	return StopEnd
}
