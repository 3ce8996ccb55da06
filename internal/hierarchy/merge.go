package hierarchy

// DeepMerge merges child into parent with child-wins precedence and
// returns a new map; neither input is modified. When both sides hold a
// map under the same key the merge recurses; any other collision (
// including arrays) is resolved by taking the child's value wholesale.
func DeepMerge(parent, child map[string]any) map[string]any {
	out := make(map[string]any, len(parent)+len(child))
	for k, v := range parent {
		out[k] = copyValue(v)
	}
	for k, cv := range child {
		pv, exists := out[k]
		if exists {
			pm, pok := pv.(map[string]any)
			cm, cok := cv.(map[string]any)
			if pok && cok {
				out[k] = DeepMerge(pm, cm)
				continue
			}
		}
		out[k] = copyValue(cv)
	}
	return out
}

// MergeChain folds a root-first list of data maps into one effective
// map: each successive (more specific) map overrides the accumulated
// result under DeepMerge rules.
func MergeChain(chain []map[string]any) map[string]any {
	merged := map[string]any{}
	for _, m := range chain {
		merged = DeepMerge(merged, m)
	}
	return merged
}

// copyValue deep-copies maps and slices so cached resolutions can never
// alias a caller-held map. Scalars are returned as-is.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
