package socmonitor

import (
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// The status document shape varies across VNish firmware builds. Detection is
// an ordered chain of extraction strategies over the generic JSON document;
// the first strategy that yields a definite answer wins.

const (
	minerStateJsonPath = "$.miner_state"
)

var (
	explicitFlagJsonPaths = []string{"$.is_mining", "$.mining"}
	realtimeRateJsonPaths = []string{"$.hr_realtime", "$.instant_hashrate", "$.hashrate"}

	activeStateWords = map[string]bool{
		"running": true,
		"hashing": true,
		"mining":  true,
	}
)

// hashingCheck inspects a status document. ok is false when the strategy has
// no opinion and the next one in the chain should be consulted.
type hashingCheck func(doc interface{}) (hashing, ok bool)

var hashingChecks = []hashingCheck{
	checkExplicitFlag,
	checkMinerState,
	checkRealtimeRate,
}

// DetectHashing reports whether the status document describes a rig that is
// currently hashing. Documents matching no strategy are treated as idle.
func DetectHashing(doc interface{}) bool {
	for _, check := range hashingChecks {
		if hashing, ok := check(doc); ok {
			return hashing
		}
	}
	return false
}

// checkExplicitFlag handles older builds that carry an is_mining/mining flag,
// encoded as 0/1, a bool, or a numeric string.
func checkExplicitFlag(doc interface{}) (bool, bool) {
	for _, path := range explicitFlagJsonPaths {
		res, err := jsonpath.JsonPathLookup(doc, path)
		if err != nil {
			continue
		}
		return coerceBool(res), true
	}
	return false, false
}

// checkMinerState handles mixed builds that report a textual miner_state.
func checkMinerState(doc interface{}) (bool, bool) {
	res, err := jsonpath.JsonPathLookup(doc, minerStateJsonPath)
	if err != nil {
		return false, false
	}
	s, isStr := res.(string)
	if !isStr {
		return false, false
	}
	if activeStateWords[strings.ToLower(s)] {
		return true, true
	}
	return false, false
}

// checkRealtimeRate handles current builds: any realtime hashrate key with a
// value strictly above zero means the rig is hashing. A present-but-zero rate
// is not a definite answer; the chain falls through to the idle default.
func checkRealtimeRate(doc interface{}) (bool, bool) {
	for _, path := range realtimeRateJsonPaths {
		res, err := jsonpath.JsonPathLookup(doc, path)
		if err != nil {
			continue
		}
		if f, ok := coerceFloat(res); ok && f > 0 {
			return true, true
		}
	}
	return false, false
}

func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return int(t) != 0
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n != 0
		}
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
		return t != ""
	}
	return v != nil
}

func coerceFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
