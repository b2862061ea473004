// Package report defines the plain-text protocol spoken with the text-generation
// service: the instruction prompts and a strict parser for its responses.
package report

// Marker is the first line of every valid report.
const Marker = "CLAIMRISK REPORT v1"

// Section header tokens, in their required order.
const (
	HeaderSummary   = "### SUMMARY"
	HeaderEvidence  = "### EVIDENCE"
	HeaderSubscores = "### SUBSCORES"
	HeaderKeyClaims = "### KEY CLAIMS"
	HeaderRedFlags  = "### RED FLAGS"
	HeaderCitations = "### CITATIONS"
)

// Headers lists the section headers in protocol order.
var Headers = []string{
	HeaderSummary,
	HeaderEvidence,
	HeaderSubscores,
	HeaderKeyClaims,
	HeaderRedFlags,
	HeaderCitations,
}

// Bullet count bounds.
const (
	MinEvidence  = 5
	MaxEvidence  = 10
	MinKeyClaims = 3
	MaxKeyClaims = 8
	MinRedFlags  = 3
	MaxRedFlags  = 8
)
