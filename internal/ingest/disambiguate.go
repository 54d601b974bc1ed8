package ingest

import "fmt"

// disambiguateIDs assigns a final candidate_id to every candidate in a
// product's seed, per the spec's two collision rules:
//
//   - the same raw id used under two different field_keys: the first
//     occurrence in each field becomes "::{field_key}::1", and later ones in
//     that same field become "::{field_key}::1::dup_{seq}" (seq starts at 1
//     with the second occurrence).
//   - the same raw id repeated within one field_key: the first occurrence
//     keeps the raw id, later ones are suffixed "::dup_{seq}" (seq is
//     1-based, starting at the second occurrence).
//
// The result is deterministic given a stable input order, which is what
// makes re-seeding the same artifact idempotent: storage.CandidateIDExists
// checks against these same final ids on every pass.
func disambiguateIDs(cands []CandidateInput) []string {
	byRawID := map[string][]int{}
	for i, c := range cands {
		byRawID[c.CandidateID] = append(byRawID[c.CandidateID], i)
	}

	out := make([]string, len(cands))
	for rawID, allIdx := range byRawID {
		byField := map[string][]int{}
		var fieldOrder []string
		for _, i := range allIdx {
			field := cands[i].FieldKey
			if _, ok := byField[field]; !ok {
				fieldOrder = append(fieldOrder, field)
			}
			byField[field] = append(byField[field], i)
		}

		crossField := len(byField) > 1
		for _, field := range fieldOrder {
			idxs := byField[field]
			for seq, i := range idxs {
				switch {
				case crossField && seq == 0:
					out[i] = fmt.Sprintf("%s::%s::%d", rawID, field, seq+1)
				case crossField:
					out[i] = fmt.Sprintf("%s::%s::%d::dup_%d", rawID, field, 1, seq)
				case seq == 0:
					out[i] = rawID
				default:
					out[i] = fmt.Sprintf("%s::dup_%d", rawID, seq)
				}
			}
		}
	}
	return out
}
