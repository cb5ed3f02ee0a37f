package gestalt

// reconcileMethodOrder reorders reflectively enumerated factory methods by
// the stable declaration order recovered from low-level metadata.
//
// Reflective enumeration does not guarantee declaration order, so it is
// treated as untrusted whenever more than one candidate exists. The stable
// order is used only when it covers every reflectively found method
// (superset of equal effective size); otherwise the reflective order is
// kept as-is.
func reconcileMethodOrder(reflective []MethodMetadata, stable []string) []MethodMetadata {
	if len(reflective) <= 1 || len(stable) < len(reflective) {
		return reflective
	}
	selected := make([]MethodMetadata, 0, len(reflective))
	for _, name := range stable {
		for _, m := range reflective {
			if m.Name == name {
				selected = append(selected, m)
				break
			}
		}
	}
	if len(selected) == len(reflective) {
		return selected
	}
	return reflective
}
