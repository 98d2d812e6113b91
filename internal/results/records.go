// Package results loads the fact-checking pipeline output a study is built on.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/factstudy/internal/model"
)

// rawRecord mirrors one entry of results.json
type rawRecord struct {
	Claim       string `json:"claim"`
	Verdict     string `json:"verdict"`
	Predictions struct {
		Justification string `json:"justification"`
		Verdict       string `json:"verdict"`
	} `json:"predictions"`
	ContextSources  []string    `json:"context_sources"`
	TopEvidenceDocs []string    `json:"top_evidence_docs"`
	TopEvidenceURLs []string    `json:"top_evidence_urls"`
	TopEvidenceIdxs []pageIndex `json:"top_evidence_idxs"`
}

// pageIndex accepts JSON numbers and numeric strings
type pageIndex int

func (p *pageIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || f != float64(int(f)) {
		return fmt.Errorf("page index %s is not an integer", data)
	}

	*p = pageIndex(f)
	return nil
}

func (r rawRecord) record() model.ClaimRecord {
	verdict := r.Predictions.Verdict
	if verdict == "" {
		verdict = r.Verdict
	}

	idxs := make([]int, len(r.TopEvidenceIdxs))
	for i, p := range r.TopEvidenceIdxs {
		idxs[i] = int(p)
	}

	return model.ClaimRecord{
		Claim:              nfc(r.Claim),
		Verdict:            nfc(verdict),
		Justification:      nfc(r.Predictions.Justification),
		ContextSources:     nfcAll(r.ContextSources),
		EvidenceParagraphs: nfcAll(r.TopEvidenceDocs),
		EvidenceURLs:       r.TopEvidenceURLs,
		PageIndices:        idxs,
	}
}

// DecodeRecords parses the contents of results.json
func DecodeRecords(data []byte) ([]model.ClaimRecord, error) {
	var raw []rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	records := make([]model.ClaimRecord, len(raw))
	for i, r := range raw {
		records[i] = r.record()
	}

	return records, nil
}

// nfc normalises text so substring lookups between the results file and the
// evidence pages compare the same code point sequences
func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcAll(in []string) []string {
	if in == nil {
		return nil
	}

	out := make([]string, len(in))
	for i, s := range in {
		out[i] = nfc(s)
	}
	return out
}
